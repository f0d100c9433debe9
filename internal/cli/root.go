// Package cli implements sheetctl, the offline converter and viewer. It
// uses the same decoders and encoders as the server, without sessions.
package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sheetview/internal/format"
	"github.com/JonMunkholm/sheetview/internal/logging"
)

// Version is set at build time via -ldflags.
var Version = "dev"

type rootOptions struct {
	legacyCSV bool
	logLevel  string
}

func (o *rootOptions) csvOptions() []format.CSVOption {
	if o.legacyCSV {
		return []format.CSVOption{format.LegacyCSV()}
	}
	return nil
}

// NewRootCmd builds the sheetctl command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "sheetctl",
		Short:         "Convert and inspect CSV and XLSX files",
		Version:       Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			slog.SetDefault(logging.New(cmd.ErrOrStderr(), opts.logLevel, "text"))
		},
	}

	root.PersistentFlags().BoolVar(&opts.legacyCSV, "legacy-csv", false, "Split CSV input on lines and commas instead of RFC 4180 parsing")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")

	root.AddCommand(newConvertCmd(opts))
	root.AddCommand(newViewCmd(opts))
	return root
}
