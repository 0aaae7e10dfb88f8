package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/alexbleotu/ferrumfix/internal/logging"
	"github.com/alexbleotu/ferrumfix/internal/protocol/dictionary"
	"github.com/pelletier/go-toml/v2"
)

// Config is the fixctl.toml document.
type Config struct {
	Log          LogConfig          `toml:"log"`
	Codec        CodecConfig        `toml:"codec"`
	Dictionaries DictionariesConfig `toml:"dictionaries"`
	Transport    TransportConfig    `toml:"transport"`
	Server       ServerConfig       `toml:"server"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type CodecConfig struct {
	// Delimiter is soh, pipe or caret.
	Delimiter        string `toml:"delimiter"`
	ValidateEnums    bool   `toml:"validate_enums"`
	ValidateRequired bool   `toml:"validate_required"`
	MaxBodyLength    int    `toml:"max_body_length"`
}

type DictionariesConfig struct {
	Builtin []string         `toml:"builtin"`
	Files   []DictionaryFile `toml:"files"`
	// DefaultApplVerID selects the application dictionary for FIXT.1.1
	// frames that carry no ApplVerID.
	DefaultApplVerID string `toml:"default_appl_ver_id"`
}

// DictionaryFile is an XML or TOML schema on disk. Envelope names a builtin
// whose header and trailer are borrowed when the file declares none.
type DictionaryFile struct {
	Path     string `toml:"path"`
	Envelope string `toml:"envelope"`
}

type TransportConfig struct {
	ConnectTimeout string    `toml:"connect_timeout"`
	ReadTimeout    string    `toml:"read_timeout"`
	WriteTimeout   string    `toml:"write_timeout"`
	MaxBufferBytes int       `toml:"max_buffer_bytes"`
	TLS            TLSConfig `toml:"tls"`
}

type TLSConfig struct {
	Enabled            bool   `toml:"enabled"`
	Mutual             bool   `toml:"mutual"`
	CertFile           string `toml:"cert_file"`
	KeyFile            string `toml:"key_file"`
	CAFile             string `toml:"ca_file"`
	ServerName         string `toml:"server_name"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"`
}

type ServerConfig struct {
	Name        string   `toml:"name"`
	Addr        string   `toml:"addr"`
	CorsOrigins []string `toml:"cors_origins"`
	// AuthToken, when set, is required as a bearer token on /decode,
	// /encode and /stream.
	AuthToken string `toml:"auth_token"`
}

// Default returns the configuration used for keys a file leaves out.
func Default() Config {
	return Config{
		Log: LogConfig{Level: "info"},
		Codec: CodecConfig{
			Delimiter:        "soh",
			ValidateEnums:    true,
			ValidateRequired: true,
			MaxBodyLength:    1 << 20,
		},
		Dictionaries: DictionariesConfig{
			Builtin:          dictionary.BuiltinIDs(),
			DefaultApplVerID: "9",
		},
		Transport: TransportConfig{
			ConnectTimeout: "5s",
			ReadTimeout:    "30s",
			WriteTimeout:   "15s",
			MaxBufferBytes: 2 << 20,
		},
		Server: ServerConfig{
			Name: "inspector",
			Addr: ":8088",
		},
	}
}

// Load reads path over the defaults and validates the result. Unknown keys
// are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	if err := loadToml(path, &cfg); err != nil {
		return Config{}, err
	}
	if err := Validate(cfg); err != nil {
		return Config{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func Validate(cfg Config) error {
	if !logging.ValidLevel(cfg.Log.Level) {
		return fmt.Errorf("log.level %q is not a log level", cfg.Log.Level)
	}
	if _, err := ParseDelimiter(cfg.Codec.Delimiter); err != nil {
		return fmt.Errorf("codec.delimiter: %w", err)
	}
	if cfg.Codec.MaxBodyLength <= 0 {
		return fmt.Errorf("codec.max_body_length must be positive")
	}
	if len(cfg.Dictionaries.Builtin) == 0 && len(cfg.Dictionaries.Files) == 0 {
		return fmt.Errorf("dictionaries: at least one builtin or file is required")
	}
	builtin := make(map[string]bool)
	for _, id := range dictionary.BuiltinIDs() {
		builtin[id] = true
	}
	for _, id := range cfg.Dictionaries.Builtin {
		if !builtin[id] {
			return fmt.Errorf("dictionaries.builtin: unknown id %q", id)
		}
	}
	for i, f := range cfg.Dictionaries.Files {
		if strings.TrimSpace(f.Path) == "" {
			return fmt.Errorf("dictionaries.files[%d]: path is required", i)
		}
		if f.Envelope != "" && !builtin[f.Envelope] {
			return fmt.Errorf("dictionaries.files[%d]: unknown envelope %q", i, f.Envelope)
		}
	}
	if id := cfg.Dictionaries.DefaultApplVerID; id != "" {
		if _, ok := dictionary.ApplVerIDs[id]; !ok {
			return fmt.Errorf("dictionaries.default_appl_ver_id %q is not an ApplVerID code", id)
		}
	}
	for key, raw := range map[string]string{
		"transport.connect_timeout": cfg.Transport.ConnectTimeout,
		"transport.read_timeout":    cfg.Transport.ReadTimeout,
		"transport.write_timeout":   cfg.Transport.WriteTimeout,
	} {
		if _, err := parseDuration(raw); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	if cfg.Transport.MaxBufferBytes < cfg.Codec.MaxBodyLength {
		return fmt.Errorf("transport.max_buffer_bytes must be at least codec.max_body_length")
	}
	if t := cfg.Transport.TLS; t.Mutual && !t.Enabled {
		return fmt.Errorf("transport.tls.mutual requires transport.tls.enabled")
	}
	if strings.TrimSpace(cfg.Server.Addr) == "" {
		return fmt.Errorf("server.addr is required")
	}
	return nil
}

// parseDuration accepts Go duration strings; empty means zero.
func parseDuration(raw string) (time.Duration, error) {
	if strings.TrimSpace(raw) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", raw)
	}
	return d, nil
}
