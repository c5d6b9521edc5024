package config

import (
	"os"
	"strings"

	"github.com/knadh/koanf"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Load populates a Config with engine defaults, then overlays path if it
// exists. A missing config file is not an error, an unreadable or
// malformed one is.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(Config{}, "koanf"), nil); err != nil {
		return nil, errors.Wrap(err, "loading config defaults")
	}
	if err := k.Load(file.Provider(path), kyaml.Parser()); err != nil {
		if !strings.Contains(err.Error(), "no such file") {
			return nil, errors.Wrapf(err, "loading config file %s", path)
		}
	}

	var cfg Config
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook:       decodeHooks(),
			Result:           &cfg,
			WeaklyTypedInput: true,
			TagName:          "koanf",
		},
	}
	if err := k.UnmarshalWithConf("", &cfg, unmarshalConf); err != nil {
		return nil, errors.Wrap(err, "decoding config")
	}
	return &cfg, nil
}

// Write encodes cfg back to YAML at path, used by the mkconf subcommand to
// seed a starter config.
func Write(path string, cfg Config) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}
	defer f.Close()
	if err := yaml.NewEncoder(f).Encode(cfg); err != nil {
		return errors.Wrapf(err, "encoding %s", path)
	}
	return nil
}
