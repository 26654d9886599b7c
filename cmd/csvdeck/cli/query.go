package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newQueryCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "query [sql]",
		Short: "Run a read-only SQL statement against the tables",
		Long: `Run one SELECT (or WITH ... SELECT) statement and print the result. Statements
that write, alter or chain several commands are rejected. The statement is
recorded in the query history like one sent to POST /query.`,
		Example: `  csvdeck query "SELECT region, SUM(amount) FROM sales GROUP BY region"
  csvdeck query -f report.sql --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := statementText(args, file)
			if err != nil {
				return err
			}
			return runQuery(cmd, text)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Read the statement from a file (- for stdin)")
	return cmd
}

func statementText(args []string, file string) (string, error) {
	switch {
	case len(args) == 1 && file != "":
		return "", fmt.Errorf("pass the statement as an argument or with --file, not both")
	case len(args) == 1:
		return args[0], nil
	case file == "-":
		data, err := io.ReadAll(os.Stdin)
		return string(data), err
	case file != "":
		data, err := os.ReadFile(file)
		return string(data), err
	}
	return "", fmt.Errorf("no statement given")
}

func runQuery(cmd *cobra.Command, text string) error {
	ctx, cancel := commandContext()
	defer cancel()

	eng, err := openEngine(ctx, newLogger())
	if err != nil {
		return err
	}
	defer eng.Close()

	res, err := eng.exec.RunAdHoc(ctx, strings.TrimSpace(text))
	if err != nil {
		return err
	}

	rows := make([][]string, len(res.Rows))
	objects := make([]map[string]any, len(res.Rows))
	for i, r := range res.Rows {
		rows[i] = make([]string, len(r))
		objects[i] = make(map[string]any, len(r))
		for j, v := range r {
			rows[i][j] = cell(v)
			objects[i][res.Columns[j]] = v
		}
	}

	payload := map[string]any{
		"columns":   res.Columns,
		"rows":      objects,
		"row_count": len(res.Rows),
		"truncated": res.Truncated,
		"took_ms":   res.Took.Milliseconds(),
	}
	if err := render(cmd.OutOrStdout(), payload, res.Columns, rows); err != nil {
		return err
	}
	if !jsonOutput && isTerminal(cmd.OutOrStdout()) {
		fmt.Fprintf(cmd.ErrOrStderr(), "(%d rows, %s)\n", len(res.Rows), res.Took.Round(1e6))
		if res.Truncated {
			fmt.Fprintln(cmd.ErrOrStderr(), "result truncated; raise query.max_rows to see more")
		}
	}
	return nil
}
