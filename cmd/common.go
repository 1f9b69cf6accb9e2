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
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/valpere/cloudtran/internal/api"
	"github.com/valpere/cloudtran/internal/detector"
	"github.com/valpere/cloudtran/internal/orchestrator"
	"github.com/valpere/cloudtran/internal/poller"
	"github.com/valpere/cloudtran/internal/store"
	"github.com/valpere/cloudtran/internal/translator"
)

// openStore opens the database, creating its directory. It returns nil when
// the cache is disabled.
func openStore() (*store.Store, error) {
	if cfg.NoCache {
		return nil, nil
	}
	if dir := filepath.Dir(cfg.DB); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := store.New(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// requireStore is openStore for commands that only work on the database.
func requireStore() (*store.Store, error) {
	if cfg.NoCache {
		return nil, errors.New("the database is disabled (--no-cache)")
	}
	return openStore()
}

func newClient() *api.Client {
	return api.New(cfg.Endpoint,
		api.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		api.WithUploadClient(&http.Client{Timeout: cfg.UploadTimeout}),
		api.WithLogger(logger),
	)
}

type orchestratorOptions struct {
	backend        string
	chunking       bool
	skipValidation bool
	detect         bool
}

// buildOrchestrator wires the endpoint client, the text backend and the
// translation memory.
func buildOrchestrator(client *api.Client, db *store.Store, opts orchestratorOptions) (*orchestrator.Orchestrator, error) {
	if opts.backend == "" {
		opts.backend = cfg.Backend
	}
	service, err := translator.New(opts.backend, client, translator.ServiceConfig{
		Credentials: cfg.GoogleCredentials,
		ProjectID:   cfg.GoogleProject,
		Timeout:     cfg.HTTPTimeout,
	})
	if err != nil {
		return nil, err
	}

	oc := orchestrator.Config{
		Chunking:       opts.chunking,
		SkipValidation: opts.skipValidation,
		Logger:         logger,
	}
	if db != nil {
		oc.Cache = db
	}
	if opts.detect {
		oc.Detector = detector.New()
	}
	return orchestrator.New(client, service, oc), nil
}

func sessionConfig(db *store.Store, onChange func(orchestrator.State)) orchestrator.SessionConfig {
	sc := orchestrator.SessionConfig{
		Poll: poller.Config{
			Interval:    cfg.PollInterval,
			MaxAttempts: cfg.MaxAttempts,
		},
		OnChange: onChange,
		Logger:   logger,
	}
	if db != nil {
		sc.History = db
	}
	return sc
}

// signalContext is cancelled on Ctrl-C or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

const progressWidth = 30

// progressPrinter renders session changes as a single updating line.
func progressPrinter(w io.Writer) func(orchestrator.State) {
	var last string
	return func(st orchestrator.State) {
		var line string
		switch {
		case st.IsPolling || st.PollState.Terminal():
			filled := int(st.Progress / 100 * progressWidth)
			line = fmt.Sprintf("[%s%s] %3.0f%% %s",
				strings.Repeat("#", filled), strings.Repeat(".", progressWidth-filled), st.Progress, st.JobStatus)
		case st.JobStatus != "":
			line = st.JobStatus
		default:
			if last != "" && !st.IsLoading {
				fmt.Fprintln(w)
				last = ""
			}
			return
		}
		if line == last {
			return
		}
		last = line
		fmt.Fprintf(w, "\r\033[K%s", line)
		if !st.IsPolling && !st.IsLoading {
			fmt.Fprintln(w)
		}
	}
}

// waitForJob blocks until the session's poll ends. Interrupting ctx cancels
// polling; the job keeps running remotely.
func waitForJob(ctx context.Context, sess *orchestrator.Session) error {
	st, err := sess.Wait(ctx)
	switch {
	case err == nil:
		fmt.Println(st.DownloadURL)
		return nil
	case errors.Is(err, context.Canceled):
		sess.Cancel()
		return fmt.Errorf("interrupted: check the job later with: cloudtran status %s", st.JobID)
	case errors.Is(err, poller.ErrCancelled):
		return fmt.Errorf("polling cancelled: check the job later with: cloudtran status %s", st.JobID)
	case st.Error != "":
		return errors.New(st.Error)
	default:
		return err
	}
}
