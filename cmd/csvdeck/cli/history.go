package cli

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show upload and query history",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUploadHistory(cmd, limit)
		},
	}
	cmd.PersistentFlags().IntVarP(&limit, "limit", "n", 50, "Number of entries to show, newest first")

	cmd.AddCommand(&cobra.Command{
		Use:   "uploads",
		Short: "Show recent uploads",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUploadHistory(cmd, limit)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "queries",
		Short: "Show recent ad hoc queries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueryHistory(cmd, limit)
		},
	})

	return cmd
}

func runUploadHistory(cmd *cobra.Command, limit int) error {
	ctx, cancel := commandContext()
	defer cancel()

	eng, err := openEngine(ctx, newLogger())
	if err != nil {
		return err
	}
	defer eng.Close()

	recs, err := eng.audit.ListUploads(ctx, limit)
	if err != nil {
		return err
	}
	rows := make([][]string, len(recs))
	for i, r := range recs {
		rows[i] = []string{
			r.CreatedAt.Local().Format(time.DateTime),
			r.FileName,
			r.TableName,
			strconv.FormatInt(r.RowsInserted, 10),
		}
	}
	return render(cmd.OutOrStdout(), recs, []string{"UPLOADED", "FILE", "TABLE", "ROWS"}, rows)
}

func runQueryHistory(cmd *cobra.Command, limit int) error {
	ctx, cancel := commandContext()
	defer cancel()

	eng, err := openEngine(ctx, newLogger())
	if err != nil {
		return err
	}
	defer eng.Close()

	recs, err := eng.audit.ListQueries(ctx, limit)
	if err != nil {
		return err
	}
	rows := make([][]string, len(recs))
	for i, r := range recs {
		status := "ok"
		if !r.Success {
			status = r.Error
		}
		rows[i] = []string{
			r.CreatedAt.Local().Format(time.DateTime),
			strconv.FormatFloat(r.ExecutionTimeMs, 'f', 1, 64),
			strconv.FormatInt(r.RowCount, 10),
			cell(r.QueryText),
			cell(status),
		}
	}
	return render(cmd.OutOrStdout(), recs, []string{"RAN", "MS", "ROWS", "QUERY", "STATUS"}, rows)
}
