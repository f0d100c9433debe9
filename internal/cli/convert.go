package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/sheetview/internal/export"
	"github.com/JonMunkholm/sheetview/internal/format"
)

type convertOptions struct {
	*rootOptions
	to     string
	out    string
	filter string
	jobs   int
}

func newConvertCmd(root *rootOptions) *cobra.Command {
	opts := &convertOptions{rootOptions: root}

	cmd := &cobra.Command{
		Use:   "convert FILE...",
		Short: "Convert files to another format",
		Long: `Decode each CSV or XLSX file and write it in the target format.

Output files keep the input's base name with the new extension. The pdf
target writes a printable HTML document of the filtered view; the other
targets write the whole table.

Examples:
  sheetctl convert report.xlsx --to csv
  sheetctl convert *.csv --to xlsx --out converted --jobs 8
  sheetctl convert people.csv --to pdf --filter london`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.to, "to", "csv", "Target format: csv, xls, xlsx, pdf")
	cmd.Flags().StringVar(&opts.out, "out", "", "Output directory (default: next to each input)")
	cmd.Flags().StringVar(&opts.filter, "filter", "", "Filter term for the pdf view")
	cmd.Flags().IntVar(&opts.jobs, "jobs", 4, "Files converted concurrently")
	return cmd
}

func runConvert(cmd *cobra.Command, opts *convertOptions, files []string) error {
	to, err := export.ParseFormat(opts.to)
	if err != nil {
		return err
	}
	if opts.jobs < 1 {
		return fmt.Errorf("--jobs must be at least 1")
	}
	if opts.out != "" {
		if err := os.MkdirAll(opts.out, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	dsts, err := destinations(opts.out, to, files)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(opts.jobs)

	var mu sync.Mutex
	w := cmd.OutOrStdout()

	for i, src := range files {
		dst := dsts[i]
		g.Go(func() error {
			if err := convertFile(ctx, opts, to, src, dst); err != nil {
				return fmt.Errorf("%s: %w", src, err)
			}
			mu.Lock()
			fmt.Fprintf(w, "%s -> %s\n", src, dst)
			mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

// destinations maps every input to its output path. The output keeps the
// input's base name with the target extension, in dir or next to the input.
// Writing over an input or giving two inputs the same output is an error.
func destinations(dir string, to export.Format, files []string) ([]string, error) {
	seen := make(map[string]string, len(files))
	dsts := make([]string, len(files))

	for i, src := range files {
		out := dir
		if out == "" {
			out = filepath.Dir(src)
		}
		base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
		dst := filepath.Join(out, base+to.Ext())

		if dst == filepath.Clean(src) {
			return nil, fmt.Errorf("%s: output would overwrite input; use --out", src)
		}
		key, err := filepath.Abs(dst)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", src, err)
		}
		if prev, ok := seen[key]; ok {
			return nil, fmt.Errorf("%s and %s would both write %s", prev, src, dst)
		}
		seen[key] = src
		dsts[i] = dst
	}
	return dsts, nil
}

func convertFile(ctx context.Context, opts *convertOptions, to export.Format, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	table, kind, err := format.Load(src, f, opts.csvOptions()...)
	if err != nil {
		return err
	}

	art, err := export.Render(ctx, to, table, opts.filter)
	if err != nil {
		return err
	}

	if err := os.WriteFile(dst, art.Body, 0o644); err != nil {
		return err
	}

	slog.Debug("converted", "src", src, "kind", kind, "dst", dst, "rows", table.Len())
	return nil
}
