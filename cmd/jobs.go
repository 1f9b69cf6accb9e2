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
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/valpere/cloudtran/internal/store"
)

var (
	jobsLimit int
	jobsJSON  bool
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Show the local history of document jobs",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent document jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := requireStore()
		if err != nil {
			return err
		}
		defer db.Close()

		jobs, err := db.ListJobs(context.Background(), jobsLimit)
		if err != nil {
			return fmt.Errorf("failed to list jobs: %w", err)
		}

		if jobsJSON {
			if jobs == nil {
				jobs = []store.JobRecord{}
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(jobs)
		}

		if len(jobs) == 0 {
			fmt.Println("No jobs recorded.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "JOB ID\tFILE\tTARGET\tSTATE\tREMOTE\tCHECKS\tUPDATED")
		for _, j := range jobs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
				j.JobID, j.FileName, j.TargetLang, j.State, j.RemoteStatus,
				j.Attempts, j.UpdatedAt.Local().Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var jobsShowCmd = &cobra.Command{
	Use:   "show <jobId>",
	Short: "Show one recorded job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := requireStore()
		if err != nil {
			return err
		}
		defer db.Close()

		job, err := db.GetJob(context.Background(), args[0])
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("job %s is not in the local history", args[0])
		}
		if err != nil {
			return fmt.Errorf("failed to read job: %w", err)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(job)
	},
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsShowCmd)

	jobsListCmd.Flags().IntVarP(&jobsLimit, "limit", "n", 20, "Number of jobs to show (0 for all)")
	jobsListCmd.Flags().BoolVar(&jobsJSON, "json", false, "Print JSON")
}
