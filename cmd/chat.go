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
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/valpere/bhasha/internal/detector"
	"github.com/valpere/bhasha/internal/lang"
	"github.com/valpere/bhasha/internal/orchestrator"
)

var (
	chatLang string
	chatJSON bool
)

var chatCmd = &cobra.Command{
	Use:   "chat [question]",
	Short: "Ask one question from the command line",
	Long: `Run a single chat turn without starting the server.

The question is taken from the arguments, or from stdin when none are given.
Use --lang auto to detect the language of the question.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")
		if text == "" {
			in, err := io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("failed to read stdin: %w", err)
			}
			text = string(in)
		}

		code := chatLang
		if code == "auto" {
			code = string(lang.EN)
			if detected, ok := detector.New().Detect(text); ok {
				code = string(detected)
				fmt.Fprintf(os.Stderr, "Detected language: %s\n", code)
			}
		}

		a, err := buildApp(buildOptions{generator: true})
		if err != nil {
			return err
		}
		defer a.Close()

		req := orchestrator.Request{Text: text, Lang: code}
		start := time.Now()
		reply, err := a.orch.Handle(context.Background(), req)
		if err != nil {
			return err
		}

		if h, ok := a.history(); ok {
			recordExchange(a, h, req, reply, time.Since(start))
		}

		if chatJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(reply)
		}

		if reply.Warn != "" {
			fmt.Fprintf(os.Stderr, "Fallback used: %s\n", reply.Warn)
		}
		if !reply.OK {
			return fmt.Errorf("chat failed: %s", reply.Error)
		}
		fmt.Println(reply.Answer)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().StringVarP(&chatLang, "lang", "l", "en", "Language of the question (en, hi, pa or auto)")
	chatCmd.Flags().BoolVar(&chatJSON, "json", false, "Print the full reply as JSON")
}
