// Copyright 2020-2025 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package main provides the sproto CLI: inspect compiled schema bundles
// and apply the 0-pack transform to encoded messages.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/czlc/sproto"
)

// logConfig holds the logging CLI flags.
type logConfig struct {
	Level string
}

// RegisterFlags adds logging flags to the given flag set.
func (c *logConfig) RegisterFlags(flags *pflag.FlagSet) {
	flags.StringVar(&c.Level, "log-level", "info", "log level, one of: error, warn, info, debug")
}

// NewLogger builds a logger from the flag values.
func (c *logConfig) NewLogger() (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", c.Level, err)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), nil
}

func main() {
	cfg := &logConfig{}

	rootCmd := &cobra.Command{
		Use:           "sproto",
		Short:         "Inspect sproto schema bundles and pack message streams",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cfg.RegisterFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(
		dumpCmd(cfg),
		packCmd(cfg, false),
		packCmd(cfg, true),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func dumpCmd(cfg *logConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "dump <bundle>",
		Short: "Print a compiled schema bundle as text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := cfg.NewLogger()
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			schema, err := sproto.NewSchema(data)
			if err != nil {
				return err
			}
			defer schema.Release()
			logger.Debug("loaded bundle",
				"types", len(schema.Types()),
				"protocols", len(schema.Protocols()))
			fmt.Fprint(cmd.OutOrStdout(), schema.Dump())
			return nil
		},
	}
}

func packCmd(cfg *logConfig, unpack bool) *cobra.Command {
	use, short := "pack <file>", "0-pack a file to stdout"
	if unpack {
		use, short = "unpack <file>", "0-unpack a file to stdout"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := cfg.NewLogger()
			if err != nil {
				return err
			}
			src, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var out []byte
			if unpack {
				out, err = sproto.UnpackBytes(src)
				if err != nil {
					return err
				}
			} else {
				out = sproto.PackBytes(src)
			}
			logger.Debug("transformed", "in", len(src), "out", len(out))
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}
