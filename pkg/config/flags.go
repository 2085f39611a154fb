// Copyright 2025 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
)

// Load builds the configuration for the given command line arguments (without
// the program name). It returns flag.ErrHelp when -help was requested.
func Load(args []string, output io.Writer) (Config, error) {
	flags := flag.NewFlagSet("daqs-exporter", flag.ContinueOnError)
	flags.SetOutput(output)
	flags.Usage = func() {
		fmt.Fprintf(flags.Output(), "Usage: daqs-exporter [flags] [data-dir]\n\n")
		flags.PrintDefaults()
	}

	var (
		configFile string
		bindIP     string
		bindPort   int
		verbose    bool
	)

	flags.StringVar(&configFile, "config", "", "path to a YAML config file (env "+EnvConfigFile+")")
	flags.StringVar(&bindIP, "bind-ip", "", "bind ip: default(0.0.0.0)")
	flags.IntVar(&bindPort, "bind-port", 0, "bind port: default(9980)")
	flags.BoolVar(&verbose, "verbose", false, "verbose output")

	positional, err := parseInterleaved(flags, args)
	if err != nil {
		return Config{}, err
	}

	if len(positional) > 1 {
		flags.Usage()

		return Config{}, fmt.Errorf("expected at most one data directory, got %d arguments", len(positional))
	}

	cfg := Default()

	if configFile == "" {
		configFile = ConfigFileFromEnv()
	}

	if configFile != "" {
		if err := LoadFile(configFile, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := ApplyEnv(&cfg); err != nil {
		return Config{}, err
	}

	flags.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "bind-ip":
			cfg.BindIP = bindIP
		case "bind-port":
			cfg.BindPort = bindPort
		case "verbose":
			cfg.Verbose = verbose
		}
	})

	if len(positional) == 1 && positional[0] != "" {
		cfg.DataDir = positional[0]
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// parseInterleaved parses flags placed before, between or after positional
// arguments. Everything after "--" is positional.
func parseInterleaved(flags *flag.FlagSet, args []string) ([]string, error) {
	var positional []string

	for {
		if err := flags.Parse(args); err != nil {
			return nil, err
		}

		rest := flags.Args()
		if len(rest) == 0 {
			return positional, nil
		}

		if consumed := len(args) - len(rest); consumed > 0 && args[consumed-1] == "--" {
			return append(positional, rest...), nil
		}

		positional = append(positional, rest[0])
		args = rest[1:]
	}
}

// IsHelp reports whether err is the result of -help.
func IsHelp(err error) bool {
	return errors.Is(err, flag.ErrHelp)
}
