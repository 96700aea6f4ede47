package pkg

import (
	"errors"
	"fmt"
	"time"
)

const (
	ReleaseVersion = "0.2.0"
	DefaultMatch   = "main"
)

type Config struct {
	Bind        string
	Port        int
	ListenTCP   string
	ListenSSH   string
	SSHHostKey  string
	Chessterm   string
	IdleTimeout time.Duration
	QueueSize   int
	LogFile     string
	TLSCert     string
	TLSKey      string
	Verbose     bool
}

func (c *Config) Validate() error {
	if (c.TLSCert == "") != (c.TLSKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	// role and snapshot are queued together on connect
	if c.QueueSize < 2 {
		return fmt.Errorf("invalid queue size (must be at least 2): %d", c.QueueSize)
	}
	if c.ListenSSH != "" && c.Chessterm == "" {
		return errors.New("--listen-ssh requires --chessterm")
	}
	if c.ListenSSH != "" && c.Scheme() == "https" && c.ListenTCP == "" {
		return errors.New("--listen-ssh with TLS requires --listen-tcp")
	}
	return nil
}

func (c *Config) Scheme() string {
	if c.TLSCert != "" && c.TLSKey != "" {
		return "https"
	}
	return "http"
}
