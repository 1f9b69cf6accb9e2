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
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/valpere/cloudtran/internal/config"
	"github.com/valpere/cloudtran/internal/languages"
	"github.com/valpere/cloudtran/internal/orchestrator"
	"github.com/valpere/cloudtran/internal/translator"
	"github.com/valpere/cloudtran/internal/upload"
)

var (
	inputFile  string
	outputFile string
	targetLang string

	useChunking bool
	noValidate  bool
	noWait      bool
)

var translateCmd = &cobra.Command{
	Use:   "translate",
	Short: "Translate text or a document",
}

var translateTextCmd = &cobra.Command{
	Use:   "text [text...]",
	Short: "Translate text",
	Long: `Translate text given as arguments, read from a file (-i) or from stdin (-i -).

Text is limited to 5000 characters per request. With --chunk, longer text is
split at paragraph and sentence boundaries and translated piece by piece.

Backends:
  - endpoint  the managed translation endpoint (default)
  - google    Google Cloud Translation (requires credentials)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readText(args)
		if err != nil {
			return err
		}

		backend := cfg.Backend
		if backend == translator.BackendEndpoint {
			if err := cfg.RequireEndpoint(); err != nil {
				return err
			}
		}

		db, err := openStore()
		if err != nil {
			return err
		}
		if db != nil {
			defer db.Close()
		}

		orch, err := buildOrchestrator(newClient(), db, orchestratorOptions{
			backend:        backend,
			chunking:       useChunking,
			skipValidation: noValidate,
			detect:         true,
		})
		if err != nil {
			return err
		}

		ctx, stop := signalContext()
		defer stop()

		res, err := orch.TranslateText(ctx, text, targetLang)
		if err != nil {
			return err
		}

		if res.SourceLang != "" {
			fmt.Fprintf(os.Stderr, "Detected source language: %s\n", res.SourceLang)
		}
		if res.Cached {
			fmt.Fprintf(os.Stderr, "Using cached translation\n")
		}
		if res.Chunks > 1 {
			fmt.Fprintf(os.Stderr, "Translated in %d chunks\n", res.Chunks)
		}
		if res.Warning != "" {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", res.Warning)
		}

		if outputFile == "" {
			fmt.Println(res.TranslatedText)
			return nil
		}
		if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		if err := os.WriteFile(outputFile, []byte(res.TranslatedText), 0644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Successfully translated to %s\n", languages.Native(targetLang))
		return nil
	},
}

var translateDocumentCmd = &cobra.Command{
	Use:   "document",
	Short: "Translate a document",
	Long: fmt.Sprintf(`Upload a document, start a translation job and poll it until the
translated document is ready. The download URL is printed on stdout.

Accepted files: %s, up to %s. Markdown is converted to HTML first.
Ctrl-C stops polling; the job keeps running and can be checked later
with "cloudtran status <jobId>".`, strings.Join(upload.Extensions(), ", "), upload.FormatSize(upload.MaxFileSize)),
	RunE: func(cmd *cobra.Command, args []string) error {
		if inputFile == "" {
			return fmt.Errorf("required flag \"input\" not set")
		}
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
		orch, err := buildOrchestrator(client, db, orchestratorOptions{backend: translator.BackendEndpoint})
		if err != nil {
			return err
		}

		sess := orchestrator.NewSession(orch, sessionConfig(db, progressPrinter(os.Stderr)))
		defer sess.Close()

		ctx, stop := signalContext()
		defer stop()

		jobID, err := sess.TranslateFile(ctx, inputFile, targetLang)
		if err != nil {
			return err
		}
		logger.Info().Str("job_id", jobID).Str("poll", cfg.PollBudget()).Msg("translation job started")

		if noWait {
			fmt.Println(jobID)
			return nil
		}
		return waitForJob(ctx, sess)
	},
}

// readText takes the text from args, the input file, or stdin.
func readText(args []string) (string, error) {
	switch {
	case len(args) > 0 && inputFile != "":
		return "", fmt.Errorf("give the text either as arguments or with --input, not both")
	case len(args) > 0:
		return strings.Join(args, " "), nil
	case inputFile == "-":
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	case inputFile != "":
		data, err := os.ReadFile(inputFile)
		if err != nil {
			return "", fmt.Errorf("failed to read input file: %w", err)
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("no text given: pass it as arguments or with --input")
	}
}

func init() {
	rootCmd.AddCommand(translateCmd)
	translateCmd.AddCommand(translateTextCmd)
	translateCmd.AddCommand(translateDocumentCmd)

	translateCmd.PersistentFlags().StringVarP(&inputFile, "input", "i", "", "Input file (- for stdin in text mode)")
	translateCmd.PersistentFlags().StringVarP(&targetLang, "target", "t", languages.Default, "Target language code ("+strings.Join(languages.Codes(), ", ")+")")

	translateTextCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default stdout)")
	translateTextCmd.Flags().BoolVar(&useChunking, "chunk", false, "Split text longer than 5000 characters instead of rejecting it")
	translateTextCmd.Flags().BoolVar(&noValidate, "no-validate", false, "Skip the output language check")
	translateTextCmd.Flags().String("backend", "", "Text backend: endpoint or google (default endpoint)")
	translateTextCmd.Flags().String("google-credentials", "", "Path to Google Cloud credentials")
	translateTextCmd.Flags().String("google-project", "", "Google Cloud project ID for quota")
	v.BindPFlag(config.KeyBackend, translateTextCmd.Flags().Lookup("backend"))
	v.BindPFlag(config.KeyGoogleCredentials, translateTextCmd.Flags().Lookup("google-credentials"))
	v.BindPFlag(config.KeyGoogleProject, translateTextCmd.Flags().Lookup("google-project"))

	translateDocumentCmd.Flags().BoolVar(&noWait, "no-wait", false, "Print the job ID and exit without waiting for the result")
}
