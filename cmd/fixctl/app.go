package main

import (
	"flag"
	"fmt"

	"github.com/alexbleotu/ferrumfix/internal/config"
	"github.com/alexbleotu/ferrumfix/internal/logging"
	"github.com/alexbleotu/ferrumfix/internal/observability"
	"github.com/alexbleotu/ferrumfix/internal/protocol"
	"github.com/alexbleotu/ferrumfix/internal/protocol/dictionary"
	"github.com/alexbleotu/ferrumfix/internal/protocol/frame"
	"github.com/rs/zerolog"
)

// common holds the flags every subcommand accepts.
type common struct {
	configPath string
	delimiter  string
	dict       string
}

func (c *common) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "fixctl.toml path (built-in defaults when empty)")
	fs.StringVar(&c.delimiter, "delimiter", "", "override codec.delimiter: soh|pipe|caret")
	fs.StringVar(&c.dict, "dict", "", "pin one dictionary id or file instead of routing by header")
}

type app struct {
	cfg  config.Config
	opts protocol.Options
	reg  *dictionary.Registry
	dec  *protocol.RegistryDecoder
	log  zerolog.Logger
}

func (c common) load(component string) (*app, error) {
	cfg := config.Default()
	if c.configPath != "" {
		loaded, err := config.Load(c.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if c.delimiter != "" {
		cfg.Codec.Delimiter = c.delimiter
	}
	logging.ConfigureLevel(cfg.Log.Level)

	opts, err := cfg.Codec.Options()
	if err != nil {
		return nil, err
	}
	reg, err := cfg.Dictionaries.Registry()
	if err != nil {
		return nil, err
	}
	return &app{
		cfg:  cfg,
		opts: opts,
		reg:  reg,
		dec:  protocol.NewRegistryDecoder(reg, cfg.Dictionaries.DefaultApplVerID, opts),
		log:  observability.Logger(component),
	}, nil
}

// pinned resolves a -dict reference: a registered id first, then a builtin
// id or dictionary file.
func (a *app) pinned(ref string) (*dictionary.Dictionary, error) {
	if d, ok := a.reg.Lookup(ref); ok {
		return d, nil
	}
	return dictionary.Load(ref)
}

// decoder returns the frame decoder for ref and a way to find the
// dictionary of each decoded message. An empty ref routes by header.
func (a *app) decoder(ref string) (frame.Decoder, func(*protocol.Message) *dictionary.Dictionary, error) {
	if ref == "" {
		return a.dec, func(m *protocol.Message) *dictionary.Dictionary {
			d, _ := a.dec.DictionaryFor(m)
			return d
		}, nil
	}
	d, err := a.pinned(ref)
	if err != nil {
		return nil, nil, err
	}
	return protocol.NewDecoder(d, a.opts), func(*protocol.Message) *dictionary.Dictionary { return d }, nil
}

// encoder picks the dictionary for a mirror: ref when set, otherwise the
// mirror's BeginString, MsgType and ApplVerID.
func (a *app) encoder(ref string, m protocol.MessageMirror) (*dictionary.Dictionary, *protocol.Encoder, error) {
	var d *dictionary.Dictionary
	var err error
	if ref != "" {
		d, err = a.pinned(ref)
	} else {
		if m.BeginString == "" {
			return nil, nil, fmt.Errorf("message has no begin_string; pass -dict")
		}
		d, err = a.dec.Resolve(m.BeginString, m.MsgType, m.ApplVerID())
	}
	if err != nil {
		return nil, nil, err
	}
	return d, protocol.NewEncoder(d, a.opts), nil
}

func (a *app) limits() (frame.Limits, error) {
	tc, err := a.cfg.Transport.Transport()
	if err != nil {
		return frame.Limits{}, err
	}
	return tc.Limits, nil
}
