package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/csvdeck/csvdeck/internal/model"
	"github.com/csvdeck/csvdeck/internal/service"
)

func newImportCmd() *cobra.Command {
	var keepGoing bool

	cmd := &cobra.Command{
		Use:   "import <file.csv>...",
		Short: "Load CSV files into tables",
		Long: `Load one or more CSV files into the store without running the server. Each
file becomes a table named after the file, with column types inferred from
its contents. Files already loaded under the same table name are rejected.`,
		Example: `  csvdeck import sales.csv
  csvdeck import data/*.csv --keep-going`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, args, keepGoing)
		},
	}

	cmd.Flags().BoolVar(&keepGoing, "keep-going", false, "Continue with the remaining files after a failure")
	return cmd
}

type importOutcome struct {
	File   string                `json:"file"`
	Result *service.UploadResult `json:"result,omitempty"`
	Error  string                `json:"error,omitempty"`
	Kind   model.ErrorKind       `json:"kind,omitempty"`
}

func runImport(cmd *cobra.Command, files []string, keepGoing bool) error {
	ctx, cancel := commandContext()
	defer cancel()

	eng, err := openEngine(ctx, newLogger())
	if err != nil {
		return err
	}
	defer eng.Close()

	var (
		outcomes []importOutcome
		failed   int
	)
	for _, path := range files {
		res, err := importFile(ctx, eng, path)
		out := importOutcome{File: path, Result: res}
		if err != nil {
			failed++
			out.Error = err.Error()
			if me, ok := model.AsError(err); ok {
				out.Kind = me.Kind
			}
			outcomes = append(outcomes, out)
			if !keepGoing {
				break
			}
			continue
		}
		outcomes = append(outcomes, out)
	}

	rows := make([][]string, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Result != nil {
			rows = append(rows, []string{o.File, o.Result.Table, strconv.FormatInt(o.Result.Rows, 10), strconv.Itoa(len(o.Result.Columns)), "ok"})
		} else {
			rows = append(rows, []string{o.File, "", "", "", o.Error})
		}
	}
	if err := render(cmd.OutOrStdout(), outcomes, []string{"FILE", "TABLE", "ROWS", "COLUMNS", "STATUS"}, rows); err != nil {
		return err
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed to import", failed, len(files))
	}
	return nil
}

func importFile(ctx context.Context, eng *engine, path string) (*service.UploadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, errors.New("is a directory")
	}

	return eng.ingest.Ingest(ctx, filepath.Base(path), f)
}
