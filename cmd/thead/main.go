package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/thea-remote/hostd/internal/adminapi"
	"github.com/thea-remote/hostd/internal/config"
	"github.com/thea-remote/hostd/internal/logging"
	"github.com/thea-remote/hostd/internal/platform"
	"github.com/thea-remote/hostd/internal/secretstore"
	"github.com/thea-remote/hostd/internal/server"
)

var (
	version = "0.1.0"
	cfgFile string
)

var log = logging.L("main")

var rootCmd = &cobra.Command{
	Use:   "thead",
	Short: "Thea Remote host daemon",
	Long:  `thead - remote desktop host service for Windows, macOS, and Linux`,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the host daemon",
	Run: func(cmd *cobra.Command, args []string) {
		runHost()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("thead v%s\n", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file and exit",
	Run: func(cmd *cobra.Command, args []string) {
		initConfig()
	},
}

func main() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to thead.yaml (default: per-OS config directory)")
	rootCmd.AddCommand(runCmd, versionCmd, initCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initLogging sets up structured logging from config. Call after config.Load().
func initLogging(cfg *config.Config) {
	var output io.Writer = os.Stdout

	if cfg.LogFile != "" {
		rw, err := logging.NewRotatingWriter(cfg.LogFile, cfg.LogMaxSizeMB, cfg.LogMaxBackups)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file %s: %v (logging to stdout)\n", cfg.LogFile, err)
		} else {
			output = logging.TeeWriter(os.Stdout, rw)
		}
	}

	logging.Init(cfg.LogFormat, cfg.LogLevel, output)
	log = logging.L("main")
}

func initConfig() {
	cfg := config.Default()
	path := cfgFile
	if path == "" {
		if err := cfg.Save(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write config: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("wrote default configuration")
		return
	}
	if err := cfg.SaveTo(path); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("wrote default configuration to %s\n", path)
}

// runHost builds every component and blocks until a shutdown signal
// arrives. The platform capability backends are the synthetic/noop
// fallbacks until a native backend is wired in for the current build
// target.
func runHost() {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	// Validate clamps out-of-range values in place and returns advisory
	// errors for anything it corrected; it is not fatal.
	cfg.Validate()

	initLogging(cfg)
	log.Info("starting host", "version", version, "serverName", cfg.ServerName, "port", cfg.Port)

	store := secretstore.NewKeyringStore()

	backends := server.Backends{
		NewCapturer:      func() (platform.Capturer, error) { return platform.NewSyntheticCapturer(1280, 720), nil },
		NewAudioCapturer: func() (platform.AudioCapturer, error) { return platform.NewSyntheticAudioCapturer(), nil },
		Clipboard:        &platform.MemoryClipboard{},
		SystemControl:    platform.NoopSystemControl{},
	}

	srv, err := server.New(cfg, store, backends)
	if err != nil {
		log.Error("failed to build server", "error", err)
		os.Exit(1)
	}

	go func() {
		for evt := range srv.Events() {
			log.Debug("event", "kind", evt.Kind, "at", evt.At)
		}
	}()

	go func() {
		if err := srv.Start(); err != nil {
			log.Error("server stopped with error", "error", err)
			os.Exit(1)
		}
	}()

	var adminSrv *adminapi.Server
	if cfg.AdminSocketPath != "" {
		adminSrv = adminapi.New(cfg, srv.ConnManager(), srv.AuditLogger(), srv)
		go func() {
			if err := adminSrv.Start(); err != nil {
				log.Warn("admin socket stopped", "error", err)
			}
		}()
	}

	log.Info("host is running")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("shutting down host")
	if adminSrv != nil {
		adminSrv.Stop()
	}
	srv.Stop()
	log.Info("host stopped")
}
