package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"subburn/internal/history"
)

func newRequestsCommand(cctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "requests",
		Short: "Show recent subtitle requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cctx.ensureConfig()
			if err != nil {
				return err
			}

			store, err := history.Open(cfg)
			if err != nil {
				return fmt.Errorf("open history store: %w", err)
			}
			defer func() { _ = store.Close() }()

			records, err := store.ListRecent(cmd.Context(), limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No requests recorded.")
				return nil
			}

			headers := []string{"ID", "File", "State", "Cues", "Audio", "Created", "Error"}
			rows := make([][]string, 0, len(records))
			for _, rec := range records {
				rows = append(rows, []string{
					shortID(rec.ID),
					rec.Filename,
					string(rec.State),
					strconv.Itoa(rec.CueCount),
					formatSeconds(rec.DurationSeconds),
					rec.CreatedAt.Local().Format("2006-01-02 15:04:05"),
					rec.ErrorMessage,
				})
			}
			aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft}
			fmt.Fprintln(out, renderTable(headers, rows, aligns))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of requests to show")
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatSeconds(seconds float64) string {
	if seconds <= 0 {
		return "-"
	}
	return time.Duration(seconds * float64(time.Second)).Truncate(100 * time.Millisecond).String()
}
