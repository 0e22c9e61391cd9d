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
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/valpere/bilingua/internal/session"
)

var (
	inputFile    string
	outputFile   string
	pageURL      string
	outputFormat string
	noJournal    bool
)

var translateCmd = &cobra.Command{
	Use:   "translate",
	Short: "Translate a document into a bilingual document",
	Long: `Run one translation session over an HTML or Markdown file and write the
bilingual result. Each translated block is inserted right after its source.

Press Ctrl-C to stop: batches already received are kept and the partial
document is still written. Running translate again over the output only
translates what is still missing.

Available services:
  - http     bilingua server at --api-url (default)
  - chat     OpenAI-compatible chat model, DeepSeek by default (DEEPSEEK_API_KEY)
  - google   Google Cloud Translation (GOOGLE_APPLICATION_CREDENTIALS)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if inputFile == outputFile {
			return fmt.Errorf("input file and output file cannot be the same")
		}

		doc, err := loadDocument(inputFile)
		if err != nil {
			return err
		}

		svc, err := buildService(cfg.Service, cfg, logger)
		if err != nil {
			return err
		}

		db, err := openJournal(noJournal)
		if err != nil {
			return err
		}
		var recorder session.Recorder
		if db != nil {
			defer db.Close()
			recorder = db
		}

		ctrl, err := newController(doc, svc, session.Options{
			Document: filepath.Base(inputFile),
			URL:      pageURL,
		}, newConsoleReporter(os.Stderr), recorder)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// The session outlives the signal context: an interrupt goes
		// through Stop so in-flight markers are released first.
		s := ctrl.Start(context.Background())
		go func() {
			select {
			case <-ctx.Done():
				ctrl.Stop()
			case <-s.Done():
			}
		}()
		<-s.Done()
		snap := s.Snapshot()

		if err := writeDocument(doc, outputFile, outputFormat, pageURL); err != nil {
			return err
		}

		logger.Info("translation finished",
			zap.String("session", snap.ID),
			zap.String("status", snap.Status),
			zap.String("service", svc.Name()),
			zap.String("output", outputFile))

		fmt.Printf("%s: %d/%d blocks translated to %s\n", snap.Status, snap.Completed, snap.Total, cfg.TargetLang)
		if snap.Failed > 0 {
			return fmt.Errorf("%d blocks failed; partial output written to %s", snap.Failed, outputFile)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(translateCmd)

	translateCmd.Flags().StringVarP(&inputFile, "input", "i", "", "Input HTML or Markdown file (required)")
	translateCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (required)")
	translateCmd.Flags().StringVar(&pageURL, "url", "", "Address the document was fetched from, sent to the backend as context")
	translateCmd.Flags().StringVar(&outputFormat, "format", "html", "Output format: html or md")
	translateCmd.Flags().BoolVar(&noJournal, "no-journal", false, "Do not record the run in the journal")
	addSessionFlags(translateCmd)

	translateCmd.MarkFlagRequired("input")
	translateCmd.MarkFlagRequired("output")
}

// addSessionFlags registers the flags shared by translate and console.
func addSessionFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("target", "t", "", "Target language tag (default zh-CN)")
	cmd.Flags().String("service", "", "Translation service: http, chat or google (default http)")
	cmd.Flags().String("api-url", "", "bilingua server URL for the http service")
	cmd.Flags().Int("concurrency", 0, "Maximum concurrent backend requests (default 4)")
	cmd.Flags().Int("batch-size", 0, "Blocks per request (default 15)")
	cmd.Flags().Int("min-chars", 0, "Skip blocks shorter than this many characters (default 11)")
	cmd.Flags().StringSlice("skip", nil, "Extra CSS selectors of regions to leave untranslated")
	cmd.Flags().Duration("timeout", 0, "Per-request timeout (default 60s)")
}
