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
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/valpere/bhasha/internal/detector"
	"github.com/valpere/bhasha/internal/lang"
	"github.com/valpere/bhasha/internal/translator"
)

var (
	inputFile  string
	outputFile string
	sourceLang string
	targetLang string
	noCache    bool
)

var translateCmd = &cobra.Command{
	Use:   "translate",
	Short: "Translate a file with the chat translators",
	Long: `Translate a file between English, Hindi and Punjabi using the same
translation models the chat pipeline uses.

Hindi and Punjabi are translated into each other through English.
Output goes to stdout unless --output is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if outputFile != "" && inputFile == outputFile {
			return fmt.Errorf("input file and output file cannot be the same")
		}

		raw, err := os.ReadFile(inputFile)
		if err != nil {
			return fmt.Errorf("failed to read input file: %w", err)
		}
		text := string(raw)

		if sourceLang == "auto" {
			sourceLang = string(lang.EN)
			if detected, ok := detector.New().Detect(text); ok {
				sourceLang = string(detected)
				fmt.Fprintf(os.Stderr, "Detected source language: %s\n", sourceLang)
			}
		}
		src, err := lang.Parse(sourceLang)
		if err != nil {
			return err
		}
		dst, err := lang.Parse(targetLang)
		if err != nil {
			return err
		}

		a, err := buildApp(buildOptions{noMemory: noCache})
		if err != nil {
			return err
		}
		defer a.Close()

		start := time.Now()
		out, err := translateVia(context.Background(), a.cache, text, src, dst)
		if err != nil {
			return err
		}

		if outputFile == "" {
			fmt.Println(out)
			return nil
		}

		if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		if err := os.WriteFile(outputFile, []byte(out), 0644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}

		fmt.Printf("Successfully translated %s to %s in %s\n", src, dst, time.Since(start).Round(time.Millisecond))
		return nil
	},
}

// translateVia translates directly when a model exists for the pair and
// otherwise goes through the pivot language.
func translateVia(ctx context.Context, c *translator.Cache, text string, src, dst lang.Code) (string, error) {
	if src == dst || src == lang.Pivot || dst == lang.Pivot {
		return c.Translate(ctx, text, src, dst)
	}
	mid, err := c.Translate(ctx, text, src, lang.Pivot)
	if err != nil {
		return "", err
	}
	return c.Translate(ctx, mid, lang.Pivot, dst)
}

func init() {
	rootCmd.AddCommand(translateCmd)

	translateCmd.Flags().StringVarP(&inputFile, "input", "i", "", "Input file to translate (required)")
	translateCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default stdout)")
	translateCmd.Flags().StringVarP(&sourceLang, "source", "s", "auto", "Source language code (en, hi, pa or auto)")
	translateCmd.Flags().StringVarP(&targetLang, "target", "t", "", "Target language code (required)")
	translateCmd.Flags().BoolVar(&noCache, "no-cache", false, "Bypass the translation memory")

	translateCmd.MarkFlagRequired("input")
	translateCmd.MarkFlagRequired("target")
}
