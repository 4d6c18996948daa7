// Command theactl is an admin CLI over thead's loopback admin socket:
// minting pairing codes, sending Wake-on-LAN packets, and checking
// host status/audit summary without going through the client wire
// protocol.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/thea-remote/hostd/internal/adminapi"
	"github.com/thea-remote/hostd/internal/config"
)

var socketPath string

var rootCmd = &cobra.Command{
	Use:   "theactl",
	Short: "Admin CLI for the thead host daemon",
}

var pairCmd = &cobra.Command{
	Use:   "pair",
	Short: "Mint a fresh pairing code",
	Run: func(cmd *cobra.Command, args []string) {
		validFor, _ := cmd.Flags().GetDuration("valid-for")
		withClient(func(c *adminapi.Client) error {
			resp, err := c.Pair(validFor)
			if err != nil {
				return err
			}
			fmt.Printf("pairing code: %s (expires in %ds)\n", resp.Code, resp.ExpiresIn)
			return nil
		})
	},
}

var wolCmd = &cobra.Command{
	Use:   "wol <mac-address>",
	Short: "Send a Wake-on-LAN magic packet",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		broadcast, _ := cmd.Flags().GetString("broadcast")
		withClient(func(c *adminapi.Client) error {
			resp, err := c.WakeOnLAN(args[0], broadcast)
			if err != nil {
				return err
			}
			if resp.Sent {
				fmt.Println("magic packet sent")
			}
			return nil
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show host identity and listening port",
	Run: func(cmd *cobra.Command, args []string) {
		withClient(func(c *adminapi.Client) error {
			resp, err := c.Status()
			if err != nil {
				return err
			}
			fmt.Printf("server: %s (port %d)  sessions: %d  health: %v\n",
				resp.ServerName, resp.Port, resp.ActiveSessions, resp.Health["status"])
			return nil
		})
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit-stats",
	Short: "Show audit log summary statistics",
	Run: func(cmd *cobra.Command, args []string) {
		withClient(func(c *adminapi.Client) error {
			resp, err := c.AuditStats()
			if err != nil {
				return err
			}
			fmt.Printf("total: %d  last24h: %d  lastWeek: %d  failedAuth: %d  blocked: %d  uniqueClients: %d\n",
				resp.Total, resp.Last24Hours, resp.LastWeek, resp.FailedAuth, resp.Blocked, resp.UniqueClients)
			return nil
		})
	},
}

func main() {
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", defaultSocketPath(), "path to thead's admin socket")

	pairCmd.Flags().Duration("valid-for", 5*time.Minute, "how long the minted code remains valid")
	wolCmd.Flags().String("broadcast", "255.255.255.255", "broadcast address to send the magic packet to")

	rootCmd.AddCommand(pairCmd, wolCmd, statusCmd, auditCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func defaultSocketPath() string {
	cfg, err := config.Load("")
	if err != nil || cfg.AdminSocketPath == "" {
		return ""
	}
	return cfg.AdminSocketPath
}

func withClient(fn func(*adminapi.Client) error) {
	if socketPath == "" {
		fmt.Fprintln(os.Stderr, "no admin socket configured (pass --socket or set admin_socket_path in thead.yaml)")
		os.Exit(1)
	}
	c, err := adminapi.Dial(socketPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to %s: %v\n", socketPath, err)
		os.Exit(1)
	}
	defer c.Close()

	if err := fn(c); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
