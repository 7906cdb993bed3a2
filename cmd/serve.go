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
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/valpere/bhasha/internal/server"
)

var warmOnStart bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP chat API",
	Long: `Start the HTTP server.

Endpoints:
  GET  /health   service status and supported languages
  POST /chat     {"text": "...", "lang": "en|hi|pa"}
  GET  /         demo page with the embeddable widget

Translation models are loaded on first use unless --warm is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(buildOptions{generator: true})
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if warmOnStart {
			if err := a.cache.Warm(ctx); err != nil {
				a.logger.Warn("warmup incomplete", zap.Error(err))
			}
		}

		opts := []server.Option{
			server.WithLogger(a.logger.Named("http")),
			server.WithCORSOrigins(a.cfg.Server.CORSOrigins),
		}
		if h, ok := a.history(); ok {
			opts = append(opts, server.WithHistory(h))
		}

		srv := server.New(a.orch, opts...)
		return srv.ListenAndServe(ctx, a.cfg.Server.Addr, a.cfg.Server.ShutdownTimeout)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Listen address (default :8000)")
	serveCmd.Flags().BoolVar(&warmOnStart, "warm", false, "Load all translation models before accepting requests")
	_ = v.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}
