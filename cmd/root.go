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

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/valpere/cloudtran/internal/config"
	"github.com/valpere/cloudtran/internal/logging"
)

var version = "0.1.0"

var (
	cfgFile string
	cfg     *config.Config
	logger  = zerolog.Nop()
	v       = viper.New()
)

var rootCmd = &cobra.Command{
	Use:   "cloudtran",
	Short: "Text and document translation through a managed cloud endpoint",
	Long: `A CLI for a managed translation endpoint.

Text is translated in a single request. Documents (.docx, .txt, .html, .md)
are uploaded to a pre-signed URL, a translation job is started, and its
status is polled until the translated document can be downloaded.

Settings come from flags, CLOUDTRAN_* environment variables, .env files
and $HOME/.cloudtran.yaml.

Use "cloudtran translate --help" for translation options.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config.LoadDotEnv()

		loaded, err := config.Load(v, cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded

		logger, err = logging.New(cfg.LogFormat, cfg.LogLevel)
		if err != nil {
			return err
		}
		logger.Debug().Str("endpoint", cfg.Endpoint).Str("backend", cfg.Backend).Msg("configuration loaded")
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Config file (default $HOME/.cloudtran.yaml)")
	flags.String("endpoint", "", "Translation endpoint URL")
	flags.Duration("poll-interval", 0, "Delay between job status checks (default 10s)")
	flags.Int("max-attempts", 0, "Status checks before a job is reported as timed out (default 360)")
	flags.Duration("http-timeout", 0, "Timeout for endpoint requests (default 30s)")
	flags.Duration("upload-timeout", 0, "Timeout for document uploads (default 5m)")
	flags.String("db", "", "Database path for job history and translation memory (default ./data/cloudtran.db)")
	flags.Bool("no-cache", false, "Disable the database")
	flags.String("log-level", "", "Log level: debug, info, warn, error (default info)")
	flags.String("log-format", "", "Log format: console or json (default console)")

	v.BindPFlag(config.KeyEndpoint, flags.Lookup("endpoint"))
	v.BindPFlag(config.KeyPollInterval, flags.Lookup("poll-interval"))
	v.BindPFlag(config.KeyMaxAttempts, flags.Lookup("max-attempts"))
	v.BindPFlag(config.KeyHTTPTimeout, flags.Lookup("http-timeout"))
	v.BindPFlag(config.KeyUploadTimeout, flags.Lookup("upload-timeout"))
	v.BindPFlag(config.KeyDB, flags.Lookup("db"))
	v.BindPFlag(config.KeyNoCache, flags.Lookup("no-cache"))
	v.BindPFlag(config.KeyLogLevel, flags.Lookup("log-level"))
	v.BindPFlag(config.KeyLogFormat, flags.Lookup("log-format"))
}
