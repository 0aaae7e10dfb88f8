package main

import (
	"flag"

	"github.com/alexbleotu/ferrumfix/internal/config"
	"github.com/alexbleotu/ferrumfix/internal/logging"
	"github.com/rs/zerolog/log"
)

const defaultPath = "fixctl.toml"

func main() {
	kind := flag.String("kind", "full", "template kind: full|minimal")
	output := flag.String("output", defaultPath, "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", defaultPath, "config path for validation")
	registry := flag.Bool("registry", false, "with -validate, also compile every configured dictionary")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()
	logging.ConfigureRuntime()

	if *validate {
		cfg, err := config.Load(*input)
		if err != nil {
			log.Fatal().Err(err).Msg("config invalid")
		}
		if *registry {
			reg, err := cfg.Dictionaries.Registry()
			if err != nil {
				log.Fatal().Err(err).Msg("dictionary compile failed")
			}
			log.Info().Strs("dictionaries", reg.IDs()).Msg("dictionaries compiled")
		}
		log.Info().Str("path", *input).Msg("config validated")
		return
	}

	if err := config.WriteTemplate(*output, *kind, *force); err != nil {
		log.Fatal().Err(err).Msg("write template failed")
	}
	log.Info().Str("kind", *kind).Str("path", *output).Msg("config template written")
}
