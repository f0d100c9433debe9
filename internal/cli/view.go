package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sheetview/internal/format"
	"github.com/JonMunkholm/sheetview/internal/sheet"
)

type viewOptions struct {
	*rootOptions
	filter string
}

func newViewCmd(root *rootOptions) *cobra.Command {
	opts := &viewOptions{rootOptions: root}

	cmd := &cobra.Command{
		Use:   "view FILE",
		Short: "Print a file as aligned columns",
		Long: `Decode a CSV or XLSX file and print the header and matching rows.

The filter is case-insensitive and matches anywhere in a row.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runView(cmd, opts, args[0])
		},
	}
	cmd.Flags().StringVar(&opts.filter, "filter", "", "Only show rows containing this term")
	return cmd
}

func runView(cmd *cobra.Command, opts *viewOptions, src string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	table, _, err := format.Load(src, f, opts.csvOptions()...)
	if err != nil {
		return err
	}

	rows := sheet.View(table, opts.filter)
	if len(rows) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No data")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(sanitizeCells(row.Cells), "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "%d of %d rows\n", len(rows)-1, table.Len()-1)
	return nil
}

// sanitizeCells keeps tabs and newlines inside a cell from breaking the
// column layout.
func sanitizeCells(cells []string) []string {
	out := make([]string, len(cells))
	r := strings.NewReplacer("\t", " ", "\r\n", " ", "\n", " ", "\r", " ")
	for i, c := range cells {
		out[i] = r.Replace(c)
	}
	return out
}
