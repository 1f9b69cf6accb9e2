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
	"os"

	"github.com/spf13/cobra"

	"github.com/valpere/cloudtran/internal/api"
	"github.com/valpere/cloudtran/internal/orchestrator"
	"github.com/valpere/cloudtran/internal/poller"
	"github.com/valpere/cloudtran/internal/store"
	"github.com/valpere/cloudtran/internal/translator"
)

var watchJob bool

var statusCmd = &cobra.Command{
	Use:   "status <jobId>",
	Short: "Check the status of a document translation job",
	Long: `Check a job once, or with --watch resume polling it until it finishes.
Use it for jobs whose polling timed out or was interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jobID := args[0]
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

		client := newClient()
		ctx, stop := signalContext()
		defer stop()

		if !watchJob {
			job, err := client.CheckStatus(ctx, jobID)
			if err != nil {
				return err
			}
			recordStatus(ctx, db, job)

			fmt.Fprintf(os.Stderr, "Job %s: %s\n", jobID, job.Status)
			if job.Status == api.StatusCompleted {
				fmt.Println(job.DownloadURL)
			}
			if job.Status == api.StatusFailed {
				return poller.ErrJobFailed
			}
			return nil
		}

		orch, err := buildOrchestrator(client, db, orchestratorOptions{backend: translator.BackendEndpoint})
		if err != nil {
			return err
		}
		sess := orchestrator.NewSession(orch, sessionConfig(db, progressPrinter(os.Stderr)))
		defer sess.Close()

		sess.Watch(jobID)
		return waitForJob(ctx, sess)
	},
}

// recordStatus updates the job history after a one-off check. Jobs started
// elsewhere are not in the history and are skipped.
func recordStatus(ctx context.Context, db *store.Store, job *api.Job) {
	if db == nil {
		return
	}
	rec, err := db.GetJob(ctx, job.JobID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logger.Warn().Err(err).Str("job_id", job.JobID).Msg("failed to read job history")
		}
		return
	}

	state := rec.State
	switch job.Status {
	case api.StatusCompleted:
		state = string(poller.StateCompleted)
	case api.StatusFailed:
		state = string(poller.StateFailed)
	}
	err = db.UpdateJob(ctx, job.JobID, store.JobUpdate{
		State:        state,
		RemoteStatus: string(job.Status),
		DownloadURL:  job.DownloadURL,
		Attempts:     rec.Attempts,
	})
	if err != nil {
		logger.Warn().Err(err).Str("job_id", job.JobID).Msg("failed to update job history")
	}
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVarP(&watchJob, "watch", "w", false, "Poll until the job finishes")
}
