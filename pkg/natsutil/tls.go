package natsutil

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var (
	// ErrTLSRequired is returned when TLS settings are missing.
	ErrTLSRequired = errors.New("TLS settings are required")
	// ErrCAParsingFailed is returned when CA certificate cannot be parsed
	ErrCAParsingFailed = errors.New("failed to parse CA certificate")
)

// TLSSettings locates the client certificate, key and CA used for mTLS to NATS.
// Relative paths are resolved against CertDir.
type TLSSettings struct {
	CertDir    string `json:"cert_dir,omitempty"`
	CertFile   string `json:"cert_file"`
	KeyFile    string `json:"key_file"`
	CAFile     string `json:"ca_file"`
	ServerName string `json:"server_name,omitempty"`
}

func (s *TLSSettings) path(p string) string {
	if p == "" || filepath.IsAbs(p) || s.CertDir == "" {
		return p
	}

	return filepath.Join(s.CertDir, p)
}

// TLSConfig builds a tls.Config for connecting to NATS using mTLS.
func TLSConfig(s *TLSSettings) (*tls.Config, error) {
	if s == nil || s.CertFile == "" || s.KeyFile == "" || s.CAFile == "" {
		return nil, ErrTLSRequired
	}

	cert, err := tls.LoadX509KeyPair(s.path(s.CertFile), s.path(s.KeyFile))
	if err != nil {
		return nil, fmt.Errorf("failed to load client certificate: %w", err)
	}

	caCert, err := os.ReadFile(s.path(s.CAFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}

	caPool := x509.NewCertPool()
	if !caPool.AppendCertsFromPEM(caCert) {
		return nil, ErrCAParsingFailed
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      caPool,
		ServerName:   s.ServerName,
		MinVersion:   tls.VersionTLS13,
	}, nil
}
