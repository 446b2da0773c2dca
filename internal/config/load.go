// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes every environment override. A double underscore
// separates sections: ACCOUNTS_DATABASE__URL sets database.url.
const EnvPrefix = "ACCOUNTS_"

// flagKeys maps command-line flags onto configuration keys.
var flagKeys = map[string]string{
	"database-url": "database.url",
	"log-level":    "log.level",
	"log-format":   "log.format",
	"session-file": "session.file",
	"auto-migrate": "database.auto_migrate",
}

// RegisterFlags adds the configuration flags to flags.
func RegisterFlags(flags *pflag.FlagSet) {
	def := Default()
	flags.String("database-url", "", "PostgreSQL connection URL")
	flags.String("log-level", def.Log.Level, "log level (debug, info, warn, error)")
	flags.String("log-format", def.Log.Format, "log format (json, text)")
	flags.String("session-file", "", "path of the remember-me session file")
	flags.Bool("auto-migrate", def.Database.AutoMigrate, "apply pending migrations before running a command")
}

// LoadOptions selects the sources Load reads.
type LoadOptions struct {
	// File is an explicit config path; it must exist.
	File string
	// DefaultFile is read only when it exists.
	DefaultFile string
	// Flags contribute only the flags the user actually set.
	Flags *pflag.FlagSet
}

// Load merges every source over Default. It does not validate.
func Load(opts LoadOptions) (*Config, error) {
	k := koanf.New(".")

	path, err := configPath(opts)
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("operation", "load config file").
				With("path", path).
				Wrap(err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", EnvKey), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("operation", "load environment").Wrap(err)
	}

	if opts.Flags != nil {
		provider := posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(opts.Flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("operation", "load flags").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("operation", "decode config").Wrap(err)
	}
	return &cfg, nil
}

func configPath(opts LoadOptions) (string, error) {
	if opts.File != "" {
		if _, err := os.Stat(opts.File); err != nil {
			return "", oops.Code("CONFIG_LOAD_FAILED").
				With("operation", "stat config file").
				With("path", opts.File).
				Wrap(err)
		}
		return opts.File, nil
	}
	if opts.DefaultFile == "" {
		return "", nil
	}
	_, err := os.Stat(opts.DefaultFile)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", oops.Code("CONFIG_LOAD_FAILED").
			With("operation", "stat config file").
			With("path", opts.DefaultFile).
			Wrap(err)
	}
	return opts.DefaultFile, nil
}

// EnvKey maps ACCOUNTS_RESET__BASE_URL style names to reset.base_url.
func EnvKey(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(name, EnvPrefix)), "__", ".")
}
