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

	"github.com/spf13/cobra"

	"github.com/valpere/bhasha/internal/config"
)

var version = "0.1.0"

var (
	cfgFile string
	v       = config.New()
)

var rootCmd = &cobra.Command{
	Use:   "bhasha",
	Short: "Multilingual health chat backend",
	Long: `Bhasha answers general health questions in English, Hindi and Punjabi.

Questions are translated to English, answered by a small instruction-tuned
model, and the answer is translated back. If any step fails, a shorter
fallback attempt is made before giving up.

Use "bhasha serve" to start the HTTP API.`,
	Version:      version,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default ./bhasha.yaml or ~/.config/bhasha/bhasha.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	_ = v.BindPFlag("log.debug", rootCmd.PersistentFlags().Lookup("debug"))
}
