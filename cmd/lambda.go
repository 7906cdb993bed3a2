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

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/valpere/bhasha/internal/lang"
	"github.com/valpere/bhasha/internal/orchestrator"
)

// lambdaEvent is either a chat request or a scheduled warmup ping.
type lambdaEvent struct {
	Source string `json:"source,omitempty"`
	Text   string `json:"text"`
	Lang   string `json:"lang"`
}

type chatHandler interface {
	Handle(ctx context.Context, req orchestrator.Request) (*orchestrator.Reply, error)
}

// newLambdaHandler answers chat events with the same reply shape as POST
// /chat. Client errors come back as ok=false replies rather than invocation
// errors so callers can show them.
func newLambdaHandler(chat chatHandler, warm func(context.Context) error, log *zap.Logger) func(context.Context, lambdaEvent) (*orchestrator.Reply, error) {
	return func(ctx context.Context, ev lambdaEvent) (*orchestrator.Reply, error) {
		if ev.Source == "warmup" {
			if err := warm(ctx); err != nil {
				log.Warn("warmup incomplete", zap.Error(err))
				return &orchestrator.Reply{OK: false, Error: err.Error()}, nil
			}
			return &orchestrator.Reply{OK: true}, nil
		}

		reply, err := chat.Handle(ctx, orchestrator.Request{Text: ev.Text, Lang: ev.Lang})
		switch {
		case errors.Is(err, orchestrator.ErrEmptyInput):
			return &orchestrator.Reply{OK: false, Error: "Empty text"}, nil
		case errors.Is(err, lang.ErrUnsupportedLanguage):
			return &orchestrator.Reply{OK: false, Error: err.Error()}, nil
		case err != nil:
			return nil, err
		}
		return reply, nil
	}
}

var lambdaCmd = &cobra.Command{
	Use:   "lambda",
	Short: "Run as an AWS Lambda function",
	Long: `Serve chat requests through the AWS Lambda runtime.

Events of the form {"source": "warmup"} load every translation model and
return without generating anything.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(buildOptions{generator: true})
		if err != nil {
			return err
		}
		defer a.Close()

		lambda.Start(newLambdaHandler(a.orch, a.cache.Warm, a.logger.Named("lambda")))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(lambdaCmd)
}
