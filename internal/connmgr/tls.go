package connmgr

import (
	"crypto/tls"
	"fmt"
)

// BuildTLSConfig loads the server's listener certificate and returns a
// TLS 1.3-minimum config. Clients are not required to present a
// certificate; application-level authentication supplants client-cert
// verification.
func BuildTLSConfig(certFile, keyFile string) (*tls.Config, error) {
	if certFile == "" || keyFile == "" {
		return nil, fmt.Errorf("connmgr: tls_cert_file and tls_key_file are required")
	}
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("connmgr: load tls certificate: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS13,
		ClientAuth:   tls.NoClientCert,
	}, nil
}
