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
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/valpere/bilingua/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the translation backend",
	Long: `Serve POST /api/translate for bilingua clients and browser callers,
backed by the chat or google service. GET /healthz reports backend
availability and GET /metrics exposes Prometheus metrics.

Service "http" would proxy to itself, so serve uses "chat" in its place.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		name := cfg.Service
		if name == "http" {
			name = "chat"
		}
		svc, err := buildService(name, cfg, logger)
		if err != nil {
			return err
		}

		srv := server.New(svc, server.Config{
			Addr:        cfg.Server.Addr,
			AllowOrigin: cfg.Server.AllowOrigin,
			TargetLang:  cfg.TargetLang,
			Timeout:     cfg.RequestTimeout,
		}, logger)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return srv.ListenAndServe(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Listen address (default :8080)")
	serveCmd.Flags().String("service", "", "Backend service: chat or google (default chat)")
	serveCmd.Flags().StringP("target", "t", "", "Target language when a request names none (default zh-CN)")
	serveCmd.Flags().Duration("timeout", 0, "Upstream request timeout (default 60s)")
}
