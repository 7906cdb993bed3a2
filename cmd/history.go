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
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/valpere/bhasha/internal/lang"
	"github.com/valpere/bhasha/internal/orchestrator"
	"github.com/valpere/bhasha/internal/store"
)

var (
	historyDBPath string
	historyLimit  int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect the chat exchange log",
	Long:  `List and summarise chat exchanges recorded when store.enabled is set.`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent exchanges",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openHistoryDB()
		if err != nil {
			return err
		}
		defer db.Close()

		exchanges, err := db.ListExchanges(context.Background(), historyLimit)
		if err != nil {
			return fmt.Errorf("failed to list exchanges: %w", err)
		}

		if len(exchanges) == 0 {
			fmt.Println("No exchanges recorded.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTIME\tLANG\tSTAGE\tOK\tLATENCY\tQUESTION")
		for _, e := range exchanges {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%v\t%s\t%s\n",
				e.ID, e.CreatedAt.Format("2006-01-02 15:04"), e.Lang, e.Stage,
				e.OK, e.Latency, snippet(e.Text, 40))
		}
		return w.Flush()
	},
}

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show exchange statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openHistoryDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.HistoryStats(context.Background())
		if err != nil {
			return fmt.Errorf("failed to get stats: %w", err)
		}

		fmt.Printf("Total exchanges: %d\n", stats.Total)
		fmt.Printf("Primary:         %d\n", stats.Primary)
		fmt.Printf("Fallback:        %d\n", stats.Fallback)
		fmt.Printf("Failed:          %d\n", stats.Failed)
		fmt.Printf("Avg latency:     %.0fms\n", stats.AvgLatencyMs)

		codes := make([]string, 0, len(stats.ByLang))
		for code := range stats.ByLang {
			codes = append(codes, code)
		}
		sort.Strings(codes)
		for _, code := range codes {
			fmt.Printf("  %-4s %d\n", code, stats.ByLang[code])
		}
		return nil
	},
}

func openHistoryDB() (*store.Store, error) {
	path, err := dbPathOr(historyDBPath)
	if err != nil {
		return nil, err
	}
	db, err := store.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func recordExchange(a *app, h *store.Store, req orchestrator.Request, reply *orchestrator.Reply, latency time.Duration) {
	code, _ := lang.Parse(req.Lang)
	err := h.SaveExchange(context.Background(), store.Exchange{
		ID:         reply.ID,
		Lang:       string(code),
		Text:       req.Text,
		Normalized: reply.Normalized,
		Answer:     reply.Answer,
		Warn:       reply.Warn,
		Error:      reply.Error,
		Stage:      string(reply.Stage),
		OK:         reply.OK,
		Latency:    latency,
	})
	if err != nil {
		a.logger.Warn("failed to record exchange", zap.Error(err))
	}
}

func snippet(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.PersistentFlags().StringVar(&historyDBPath, "db", "", "Database path (default store.path)")
	historyListCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of exchanges to show (0 = all)")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyStatsCmd)
}
