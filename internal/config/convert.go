package config

import (
	"fmt"
	"strings"

	"github.com/alexbleotu/ferrumfix/internal/protocol"
	"github.com/alexbleotu/ferrumfix/internal/protocol/dictionary"
	"github.com/alexbleotu/ferrumfix/internal/protocol/transport"
)

// ParseDelimiter maps a delimiter name to its byte.
func ParseDelimiter(name string) (byte, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "soh":
		return protocol.SOH, nil
	case "pipe", "|":
		return '|', nil
	case "caret", "^":
		return '^', nil
	default:
		return 0, fmt.Errorf("unknown delimiter %q (soh|pipe|caret)", name)
	}
}

func (c CodecConfig) Options() (protocol.Options, error) {
	delim, err := ParseDelimiter(c.Delimiter)
	if err != nil {
		return protocol.Options{}, err
	}
	return protocol.Options{
		Delimiter:        delim,
		ValidateEnums:    c.ValidateEnums,
		ValidateRequired: c.ValidateRequired,
		MaxBodyLength:    c.MaxBodyLength,
	}, nil
}

// Registry compiles every configured dictionary. Files are compiled after
// builtins so they may borrow a builtin envelope.
func (c DictionariesConfig) Registry() (*dictionary.Registry, error) {
	dicts := make([]*dictionary.Dictionary, 0, len(c.Builtin)+len(c.Files))
	for _, id := range c.Builtin {
		d, err := dictionary.Builtin(id)
		if err != nil {
			return nil, err
		}
		dicts = append(dicts, d)
	}
	for _, f := range c.Files {
		var opts []dictionary.Option
		if f.Envelope != "" {
			env, err := dictionary.Builtin(f.Envelope)
			if err != nil {
				return nil, err
			}
			opts = append(opts, dictionary.WithEnvelope(env))
		}
		d, err := dictionary.Load(f.Path, opts...)
		if err != nil {
			return nil, err
		}
		dicts = append(dicts, d)
	}
	return dictionary.NewRegistry(dicts...)
}

// Transport converts the section. Which TLS files are required depends on
// whether the caller dials or listens, so they are checked by
// transport.Dial and transport.Listen.
func (c TransportConfig) Transport() (transport.Config, error) {
	cfg := transport.DefaultConfig()
	connect, err := parseDuration(c.ConnectTimeout)
	if err != nil {
		return transport.Config{}, fmt.Errorf("connect_timeout: %w", err)
	}
	read, err := parseDuration(c.ReadTimeout)
	if err != nil {
		return transport.Config{}, fmt.Errorf("read_timeout: %w", err)
	}
	write, err := parseDuration(c.WriteTimeout)
	if err != nil {
		return transport.Config{}, fmt.Errorf("write_timeout: %w", err)
	}
	cfg.ConnectTimeout = connect
	cfg.ReadTimeout = read
	cfg.WriteTimeout = write
	cfg.TLS = transport.TLSConfig{
		Enabled:            c.TLS.Enabled,
		Mutual:             c.TLS.Mutual,
		CertFile:           c.TLS.CertFile,
		KeyFile:            c.TLS.KeyFile,
		CAFile:             c.TLS.CAFile,
		ServerName:         c.TLS.ServerName,
		InsecureSkipVerify: c.TLS.InsecureSkipVerify,
	}
	if c.MaxBufferBytes > 0 {
		cfg.Limits.MaxBufferBytes = c.MaxBufferBytes
	}
	return cfg, nil
}
