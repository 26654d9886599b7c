package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func newProfileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profile <table>",
		Short: "Report data quality for each column of a table",
		Long: `Compute per-column null counts, null percentage, distinct counts and a few
sample values. Statistics are computed on demand and never stored.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext()
			defer cancel()

			eng, err := openEngine(ctx, newLogger())
			if err != nil {
				return err
			}
			defer eng.Close()

			res, err := eng.profiler.Profile(ctx, args[0])
			if err != nil {
				return err
			}

			rows := make([][]string, len(res.Columns))
			for i, c := range res.Columns {
				samples := make([]string, len(c.Samples))
				for j, s := range c.Samples {
					samples[j] = s.String()
				}
				rows[i] = []string{
					c.Name,
					string(c.Type),
					strconv.FormatInt(c.NullCount, 10),
					strconv.FormatFloat(c.NullPercentage, 'f', 2, 64) + "%",
					strconv.FormatInt(c.UniqueCount, 10),
					cell(strings.Join(samples, ", ")),
				}
			}
			if err := render(cmd.OutOrStdout(), res, []string{"COLUMN", "TYPE", "NULLS", "NULL %", "UNIQUE", "SAMPLES"}, rows); err != nil {
				return err
			}
			if !jsonOutput && isTerminal(cmd.OutOrStdout()) {
				fmt.Fprintf(cmd.ErrOrStderr(), "(%s: %d rows)\n", res.Table, res.TotalRows)
			}
			return nil
		},
	}
}
