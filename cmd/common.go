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
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/valpere/bilingua/internal/config"
	"github.com/valpere/bilingua/internal/dom"
	"github.com/valpere/bilingua/internal/markdown"
	"github.com/valpere/bilingua/internal/orchestrator"
	"github.com/valpere/bilingua/internal/session"
	"github.com/valpere/bilingua/internal/store"
	"github.com/valpere/bilingua/internal/translator"
)

// buildService constructs the translation backend named by name.
func buildService(name string, c *config.Config, logger *zap.Logger) (translator.Service, error) {
	switch name {
	case "http":
		return translator.NewHTTPService(c.APIURL, c.RequestTimeout, logger), nil
	case "chat":
		chat := c.Chat
		if chat.Timeout == 0 {
			chat.Timeout = c.RequestTimeout
		}
		return translator.NewChatService(chat, logger), nil
	case "google":
		return translator.NewGoogleService(c.Google, logger), nil
	default:
		return nil, fmt.Errorf("unknown service: %s", name)
	}
}

// newController wires selector, dispatcher and injector over doc.
func newController(doc *dom.Document, svc translator.Service, opts session.Options, reporter session.Reporter, recorder session.Recorder) (*session.Controller, error) {
	sel, err := dom.NewSelector(dom.SelectorOptions{
		MinChars:      cfg.MinChars,
		SkipSelectors: cfg.SkipSelectors,
	}, logger)
	if err != nil {
		return nil, err
	}

	orch := orchestrator.New(svc, orchestrator.OrchestratorConfig{
		Concurrency: cfg.Concurrency,
		Timeout:     cfg.RequestTimeout,
	}, logger)

	opts.TargetLang = cfg.TargetLang
	opts.BatchSize = cfg.BatchSize
	opts.SettleDelay = cfg.SettleDelay
	return session.New(session.Config{
		Document:     doc,
		Selector:     sel,
		Orchestrator: orch,
		Reporter:     reporter,
		Recorder:     recorder,
		Logger:       logger,
		Options:      opts,
	})
}

// openJournal opens the run journal, or returns nil when it is disabled.
func openJournal(disabled bool) (*store.Store, error) {
	if disabled || cfg.DB == "" {
		return nil, nil
	}
	if dir := filepath.Dir(cfg.DB); dir != "." {
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

// loadDocument parses an HTML file. Markdown input is rendered to HTML
// first.
func loadDocument(path string) (*dom.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}
	if markdown.IsMarkdownPath(path) {
		return dom.ParseString(markdown.ToHTML(data))
	}
	return dom.ParseString(string(data))
}

// writeDocument renders doc to path as HTML, or as Markdown when format is
// "md". pageURL resolves relative links in Markdown output.
func writeDocument(doc *dom.Document, path, format, pageURL string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var out string
	switch strings.ToLower(format) {
	case "", "html":
		out = doc.String()
	case "md", "markdown":
		body, err := doc.Body()
		if err != nil {
			return fmt.Errorf("failed to render document: %w", err)
		}
		out, err = markdown.FromHTML(body, domainOf(pageURL))
		if err != nil {
			return fmt.Errorf("failed to convert to markdown: %w", err)
		}
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}

	if err := os.WriteFile(path, []byte(out), 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}

func domainOf(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// consoleReporter prints session status lines and notices.
type consoleReporter struct {
	mu sync.Mutex
	w  io.Writer
}

func newConsoleReporter(w io.Writer) *consoleReporter {
	return &consoleReporter{w: w}
}

func (r *consoleReporter) Status(primary, secondary string, active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	marker := " "
	if active {
		marker = "*"
	}
	if secondary == "" {
		fmt.Fprintf(r.w, "%s [%s]\n", marker, primary)
		return
	}
	fmt.Fprintf(r.w, "%s [%s] %s\n", marker, primary, secondary)
}

func (r *consoleReporter) Notify(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, "! %s\n", msg)
}
