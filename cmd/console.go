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
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/valpere/bilingua/internal/session"
)

var (
	consoleInput  string
	consoleOutput string
	consoleURL    string
	consoleFormat string
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Translate a document interactively",
	Long: `Open a document and control translation from the terminal.

  Enter   start translation, or stop the running one
  s       show progress
  w       write the current document to the output file
  q       stop, write the output file and quit

With auto_translate enabled a session starts by itself after auto_delay.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if consoleInput == consoleOutput {
			return fmt.Errorf("input file and output file cannot be the same")
		}

		doc, err := loadDocument(consoleInput)
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

		reporter := newConsoleReporter(os.Stderr)
		ctrl, err := newController(doc, svc, session.Options{
			Document: filepath.Base(consoleInput),
			URL:      consoleURL,
		}, reporter, recorder)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		reporter.Status(session.LabelStart, "press Enter to start, q to quit", false)
		if cfg.AutoTranslate {
			go ctrl.AutoStart(ctx, cfg.AutoDelay)
		}

		lines := make(chan string)
		go func() {
			defer close(lines)
			sc := bufio.NewScanner(os.Stdin)
			for sc.Scan() {
				lines <- strings.TrimSpace(sc.Text())
			}
		}()

	loop:
		for {
			select {
			case <-ctx.Done():
				break loop
			case line, ok := <-lines:
				if !ok {
					break loop
				}
				switch strings.ToLower(line) {
				case "":
					ctrl.Toggle(ctx)
				case "s":
					printSnapshot(ctrl)
				case "w":
					if err := writeDocument(doc, consoleOutput, consoleFormat, consoleURL); err != nil {
						reporter.Notify(err.Error())
						continue
					}
					reporter.Notify("written " + consoleOutput)
				case "q":
					break loop
				default:
					reporter.Notify("unknown command " + line)
				}
			}
		}

		ctrl.Stop()
		waitCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := ctrl.Wait(waitCtx); err != nil {
			reporter.Notify("session did not settle in time")
		}
		if err := writeDocument(doc, consoleOutput, consoleFormat, consoleURL); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "written %s\n", consoleOutput)
		return nil
	},
}

func printSnapshot(ctrl *session.Controller) {
	s := ctrl.Current()
	if s == nil {
		fmt.Fprintln(os.Stderr, "  idle")
		return
	}
	snap := s.Snapshot()
	fmt.Fprintf(os.Stderr, "  %s %s: %d/%d done, %d failed\n", snap.State, snap.Status, snap.Completed, snap.Total, snap.Failed)
}

func init() {
	rootCmd.AddCommand(consoleCmd)

	consoleCmd.Flags().StringVarP(&consoleInput, "input", "i", "", "Input HTML or Markdown file (required)")
	consoleCmd.Flags().StringVarP(&consoleOutput, "output", "o", "", "Output file (required)")
	consoleCmd.Flags().StringVar(&consoleURL, "url", "", "Address the document was fetched from")
	consoleCmd.Flags().StringVar(&consoleFormat, "format", "html", "Output format: html or md")
	consoleCmd.Flags().BoolVar(&noJournal, "no-journal", false, "Do not record runs in the journal")
	consoleCmd.Flags().Bool("auto", false, "Start translating automatically (auto_translate)")
	consoleCmd.Flags().Duration("auto-delay", 0, "Delay before the automatic start (default 1s)")
	addSessionFlags(consoleCmd)

	consoleCmd.MarkFlagRequired("input")
	consoleCmd.MarkFlagRequired("output")
}
