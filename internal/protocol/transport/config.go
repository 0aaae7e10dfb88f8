package transport

import (
	"time"

	"github.com/alexbleotu/ferrumfix/internal/protocol/frame"
)

// Config defines per-connection I/O limits.
type Config struct {
	// ConnectTimeout bounds dialing and the TLS handshake. Zero disables it.
	ConnectTimeout time.Duration
	// ReadTimeout is the idle limit for a single read. Zero disables it.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Limits       frame.Limits
	TLS          TLSConfig
}

func DefaultConfig() Config {
	return Config{
		ConnectTimeout: 5 * time.Second,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   15 * time.Second,
		Limits:         frame.DefaultLimits(),
	}
}
