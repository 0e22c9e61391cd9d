/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/valpere/bilingua/internal/config"
	"github.com/valpere/bilingua/internal/logging"
)

var version = "0.3.0"

var (
	cfgFile string
	cfg     *config.Config
	logger  *zap.Logger
)

// flagKeys maps command-line flags to configuration keys. A flag only
// overrides the file and environment when it is set explicitly.
var flagKeys = map[string]string{
	"target":      "target_lang",
	"api-url":     "api_url",
	"service":     "service",
	"concurrency": "concurrency",
	"batch-size":  "batch_size",
	"min-chars":   "min_chars",
	"skip":        "skip_selectors",
	"timeout":     "request_timeout",
	"auto":        "auto_translate",
	"auto-delay":  "auto_delay",
	"addr":        "server.addr",
	"db":          "db",
	"log-level":   "log.level",
	"log-json":    "log.json",
}

var rootCmd = &cobra.Command{
	Use:   "bilingua",
	Short: "Bilingual in-place HTML translator",
	Long: `Translate the readable blocks of an HTML (or Markdown) document and insert
each translation right after its source, producing a bilingual document.

Blocks are sent in batches of up to 15 to a translation backend: a bilingua
server (service "http"), an OpenAI-compatible chat model such as DeepSeek
(service "chat") or Google Cloud Translation (service "google").

Use "bilingua translate --help" for translation options.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup(cmd.Flags())
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// setup loads the configuration once and builds the logger.
func setup(flags *pflag.FlagSet) error {
	if cfg != nil {
		return nil
	}

	v, err := config.New(cfgFile)
	if err != nil {
		return err
	}
	if err := bindFlags(v, flags); err != nil {
		return err
	}
	cfg, err = config.Decode(v)
	if err != nil {
		return err
	}

	logger, err = logging.New(cfg.Log.Level, cfg.Log.JSON)
	if err != nil {
		return err
	}
	if path := v.ConfigFileUsed(); path != "" {
		logger.Debug("config loaded", zap.String("path", path))
	}
	return nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag --%s: %w", name, err)
		}
	}
	return nil
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default ./bilingua.yaml or ~/.config/bilingua/bilingua.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Write JSON logs")
	rootCmd.PersistentFlags().String("db", "", "Run journal database path (default bilingua.db)")
}
