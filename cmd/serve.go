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
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/valpere/cloudtran/internal/config"
	"github.com/valpere/cloudtran/internal/httpapi"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the translation API for a browser UI",
	Long: `Serve a JSON API with the same operations as the CLI:

  GET    /healthz
  GET    /api/languages
  POST   /api/translate             {"text": "...", "target_lang": "hi"}
  POST   /api/documents             multipart: file, target_lang
  GET    /api/documents/{id}        session state and job progress
  POST   /api/documents/{id}/cancel stop polling
  DELETE /api/documents/{id}        stop polling and discard the session`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.RequireEndpoint(); err != nil {
			return err
		}

		db, err := openStore()
		if err != nil {
			return err
		}
		if db != nil {
			defer db.Close()
		}

		orch, err := buildOrchestrator(newClient(), db, orchestratorOptions{detect: true})
		if err != nil {
			return err
		}

		api := httpapi.New(orch, httpapi.Options{
			Session:     sessionConfig(db, nil),
			CORSOrigins: cfg.CORSOriginsList(),
			Logger:      logger,
		})

		server := &http.Server{
			Addr:              cfg.Addr,
			Handler:           api.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       2 * time.Minute,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info().Str("addr", cfg.Addr).Str("endpoint", cfg.Endpoint).Str("poll", cfg.PollBudget()).Msg("API listening")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		ctx, stop := signalContext()
		defer stop()

		select {
		case err := <-errCh:
			api.Shutdown()
			return fmt.Errorf("http server failed: %w", err)
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server")
		}
		api.Shutdown()
		logger.Info().Msg("server stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Listen address (default :8080)")
	serveCmd.Flags().String("cors-origins", "", "Comma-separated allowed CORS origins (default *)")
	v.BindPFlag(config.KeyAddr, serveCmd.Flags().Lookup("addr"))
	v.BindPFlag(config.KeyCORSOrigins, serveCmd.Flags().Lookup("cors-origins"))
}
