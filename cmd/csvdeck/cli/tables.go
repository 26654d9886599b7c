package cli

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/csvdeck/csvdeck/internal/model"
)

func newTablesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tables",
		Aliases: []string{"table"},
		Short:   "List, inspect, export and drop tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTablesList(cmd)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List uploaded tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTablesList(cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "describe <name>",
		Short: "Show a table's columns and inferred types",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTablesDescribe(cmd, args[0])
		},
	})
	cmd.AddCommand(newTablesHeadCmd())
	cmd.AddCommand(newTablesExportCmd())
	cmd.AddCommand(newTablesDropCmd())

	return cmd
}

func runTablesList(cmd *cobra.Command) error {
	ctx, cancel := commandContext()
	defer cancel()

	eng, err := openEngine(ctx, newLogger())
	if err != nil {
		return err
	}
	defer eng.Close()

	tables := eng.tables.List()
	rows := make([][]string, len(tables))
	for i, t := range tables {
		rows[i] = []string{
			t.Name,
			strconv.FormatInt(t.RowCount, 10),
			strconv.Itoa(len(t.Columns)),
			t.CreatedAt.Local().Format(time.DateTime),
		}
	}
	if len(tables) == 0 && !jsonOutput && isTerminal(cmd.OutOrStdout()) {
		fmt.Fprintln(cmd.OutOrStdout(), "No tables yet. Load one with 'csvdeck import <file.csv>'.")
		return nil
	}
	return render(cmd.OutOrStdout(), tables, []string{"NAME", "ROWS", "COLUMNS", "CREATED"}, rows)
}

func runTablesDescribe(cmd *cobra.Command, name string) error {
	ctx, cancel := commandContext()
	defer cancel()

	eng, err := openEngine(ctx, newLogger())
	if err != nil {
		return err
	}
	defer eng.Close()

	meta, err := eng.tables.Get(name)
	if err != nil {
		return err
	}
	rows := make([][]string, len(meta.Columns))
	for i, c := range meta.Columns {
		rows[i] = []string{c.Name, string(c.Type), strconv.FormatBool(c.Nullable)}
	}
	return render(cmd.OutOrStdout(), meta, []string{"COLUMN", "TYPE", "NULLABLE"}, rows)
}

func newTablesHeadCmd() *cobra.Command {
	var page, limit int

	cmd := &cobra.Command{
		Use:   "head <name>",
		Short: "Print one page of a table's rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext()
			defer cancel()

			eng, err := openEngine(ctx, newLogger())
			if err != nil {
				return err
			}
			defer eng.Close()

			res, err := eng.exec.RunPaginated(ctx, args[0], page, limit)
			if err != nil {
				return err
			}
			return renderPage(cmd, res)
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "Page number, starting at 1")
	cmd.Flags().IntVar(&limit, "limit", 20, "Rows per page")
	return cmd
}

func renderPage(cmd *cobra.Command, res *model.PageResult) error {
	headers := make([]string, len(res.Columns))
	for i, c := range res.Columns {
		headers[i] = c.Name
	}
	rows := make([][]string, len(res.Rows))
	objects := make([]map[string]model.Value, len(res.Rows))
	for i, r := range res.Rows {
		rows[i] = make([]string, len(r))
		objects[i] = make(map[string]model.Value, len(r))
		for j, v := range r {
			if v.Null {
				rows[i][j] = ""
			} else {
				rows[i][j] = cell(v.String())
			}
			objects[i][headers[j]] = v
		}
	}
	payload := map[string]any{
		"table":      res.Table,
		"columns":    headers,
		"rows":       objects,
		"total_rows": res.TotalRows,
		"page":       res.Page,
		"limit":      res.Limit,
	}
	if err := render(cmd.OutOrStdout(), payload, headers, rows); err != nil {
		return err
	}
	if !jsonOutput && isTerminal(cmd.OutOrStdout()) {
		fmt.Fprintf(cmd.ErrOrStderr(), "(page %d, %d of %d rows)\n", res.Page, len(res.Rows), res.TotalRows)
	}
	return nil
}

func newTablesExportCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export <name>",
		Short: "Write a table back out as CSV",
		Example: `  csvdeck tables export sales -o sales.csv
  csvdeck tables export sales | gzip > sales.csv.gz`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext()
			defer cancel()

			eng, err := openEngine(ctx, newLogger())
			if err != nil {
				return err
			}
			defer eng.Close()

			if output == "" || output == "-" {
				return eng.tables.Export(ctx, args[0], cmd.OutOrStdout())
			}
			// Check the table first so a typo does not leave an empty file behind.
			if _, err := eng.tables.Get(args[0]); err != nil {
				return err
			}
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			if err := eng.tables.Export(ctx, args[0], f); err != nil {
				f.Close()
				os.Remove(output)
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Exported %s to %s\n", args[0], output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: stdout)")
	return cmd
}

func newTablesDropCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:     "drop <name>",
		Aliases: []string{"delete", "rm"},
		Short:   "Drop a table and its metadata",
		Long:    "Drop a table. Its upload history entries are kept.",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if !yes && !confirm(fmt.Sprintf("Drop table %q?", name)) {
				return fmt.Errorf("aborted; pass --yes to drop without confirmation")
			}

			ctx, cancel := commandContext()
			defer cancel()

			eng, err := openEngine(ctx, newLogger())
			if err != nil {
				return err
			}
			defer eng.Close()

			if err := eng.tables.Delete(ctx, name); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Table %s deleted successfully\n", name)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}
