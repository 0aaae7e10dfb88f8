package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alexbleotu/ferrumfix/internal/protocol"
	"github.com/alexbleotu/ferrumfix/internal/testutil/testlog"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	testlog.Start(t)
	require.NoError(t, Validate(Default()))
}

func TestTemplatesLoad(t *testing.T) {
	testlog.Start(t)
	for _, kind := range []string{"full", "minimal"} {
		t.Run(kind, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "fixctl.toml")
			require.NoError(t, WriteTemplate(path, kind, false))
			require.Error(t, WriteTemplate(path, kind, false), "existing file must not be overwritten")
			require.NoError(t, WriteTemplate(path, kind, true))

			cfg, err := Load(path)
			require.NoError(t, err)
			require.NotEmpty(t, cfg.Server.Addr)
		})
	}
	_, err := Template("bogus")
	require.Error(t, err)
}

func TestLoadKeepsDefaultsForMissingKeys(t *testing.T) {
	testlog.Start(t)
	path := writeFile(t, "fixctl.toml", `
[codec]
delimiter = "pipe"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "pipe", cfg.Codec.Delimiter)
	require.True(t, cfg.Codec.ValidateEnums)
	require.Equal(t, "30s", cfg.Transport.ReadTimeout)

	opts, err := cfg.Codec.Options()
	require.NoError(t, err)
	require.Equal(t, byte('|'), opts.Delimiter)
	require.Equal(t, 1<<20, opts.MaxBodyLength)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	testlog.Start(t)
	path := writeFile(t, "fixctl.toml", `
[codec]
delimter = "pipe"
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestValidateRejects(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"log level", func(c *Config) { c.Log.Level = "loud" }},
		{"delimiter", func(c *Config) { c.Codec.Delimiter = "tab" }},
		{"body length", func(c *Config) { c.Codec.MaxBodyLength = 0 }},
		{"no dictionaries", func(c *Config) { c.Dictionaries.Builtin = nil }},
		{"unknown builtin", func(c *Config) { c.Dictionaries.Builtin = []string{"FIX.4.9"} }},
		{"file without path", func(c *Config) { c.Dictionaries.Files = []DictionaryFile{{}} }},
		{"unknown envelope", func(c *Config) {
			c.Dictionaries.Files = []DictionaryFile{{Path: "x.toml", Envelope: "FIX.9"}}
		}},
		{"appl ver id", func(c *Config) { c.Dictionaries.DefaultApplVerID = "42" }},
		{"read timeout", func(c *Config) { c.Transport.ReadTimeout = "soon" }},
		{"negative write timeout", func(c *Config) { c.Transport.WriteTimeout = "-1s" }},
		{"buffer below body", func(c *Config) { c.Transport.MaxBufferBytes = 16 }},
		{"connect timeout", func(c *Config) { c.Transport.ConnectTimeout = "5" }},
		{"mutual tls disabled", func(c *Config) { c.Transport.TLS.Mutual = true }},
		{"server addr", func(c *Config) { c.Server.Addr = " " }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			require.Error(t, Validate(cfg))
		})
	}
}

func TestParseDelimiter(t *testing.T) {
	testlog.Start(t)
	for in, want := range map[string]byte{"": protocol.SOH, "SOH": protocol.SOH, "pipe": '|', "^": '^'} {
		got, err := ParseDelimiter(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
	_, err := ParseDelimiter(",")
	require.Error(t, err)
}

func TestTransportConversion(t *testing.T) {
	testlog.Start(t)
	tc, err := TransportConfig{
		ConnectTimeout: "1s",
		ReadTimeout:    "2s",
		MaxBufferBytes: 4096,
		TLS:            TLSConfig{Enabled: true, CAFile: "ca.crt", ServerName: "venue"},
	}.Transport()
	require.NoError(t, err)
	require.Equal(t, time.Second, tc.ConnectTimeout)
	require.Equal(t, 2*time.Second, tc.ReadTimeout)
	require.True(t, tc.TLS.Enabled)
	require.Equal(t, "venue", tc.TLS.ServerName)
	require.NoError(t, tc.TLS.ValidateClient())
	require.Zero(t, tc.WriteTimeout)
	require.Equal(t, 4096, tc.Limits.MaxBufferBytes)
	require.Positive(t, tc.Limits.ReadChunk)
}

func TestRegistryWithFileDictionary(t *testing.T) {
	testlog.Start(t)
	path := writeFile(t, "venue.toml", `
version = "FIX.4.3"
begin_string = "FIX.4.3"

[[fields]]
tag = 1
name = "Account"
type = "STRING"

[[messages]]
type = "U1"
name = "AccountPing"
entries = [{ field = "Account", required = true }]
`)
	cfg := DictionariesConfig{
		Builtin: []string{"FIX.4.4"},
		Files:   []DictionaryFile{{Path: path, Envelope: "FIX.4.4"}},
	}
	reg, err := cfg.Registry()
	require.NoError(t, err)
	require.Equal(t, []string{"FIX.4.3", "FIX.4.4"}, reg.IDs())

	d, ok := reg.Lookup("FIX.4.3")
	require.True(t, ok)
	require.Equal(t, "FIX.4.3", d.BeginString)
	require.True(t, d.Header().Contains(49), "header borrowed from envelope")
	_, ok = d.Message("U1")
	require.True(t, ok)
}

func TestRegistryReportsMissingFile(t *testing.T) {
	testlog.Start(t)
	cfg := DictionariesConfig{Files: []DictionaryFile{{Path: filepath.Join(t.TempDir(), "nope.xml")}}}
	_, err := cfg.Registry()
	require.Error(t, err)
}
