package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/testsets/internal/application"
	"github.com/JonMunkholm/testsets/internal/core"
)

func newSaveCmd() *cobra.Command {
	var (
		driver   string
		progress bool
	)

	cmd := &cobra.Command{
		Use:   "save FILE",
		Short: "Upsert a JSON test set; FILE may be - for stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if driver != "" {
				cfg.Store.Driver = driver
			}

			doc, err := readDocument(args[0])
			if err != nil {
				if werr := writeJSON(core.Rejected(err)); werr != nil {
					return werr
				}
				fmt.Fprintln(stderr, core.FormatUserError(err))
				fmt.Fprintln(stderr, "detail:", err)
				return errReported
			}

			app := application.New(cfg)
			defer app.Close()

			var opts []core.PipelineOption
			if progress {
				opts = append(opts, core.WithProgress(func(p core.Progress) {
					fmt.Fprintf(stderr, "%-24s rows=%d stage_rows=%d\n", p.Phase, p.RowsUpserted, p.StageRows)
				}))
			}

			res := app.Service.SaveTestSet(cmd.Context(), doc, opts...)
			if err := writeJSON(res); err != nil {
				return err
			}
			if !res.Succeeded() {
				fmt.Fprintln(stderr, core.FormatUserError(res.Err))
				return errReported
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&driver, "driver", "", "Override STORE_DRIVER (postgres, sqlite, supabase, memory)")
	cmd.Flags().BoolVar(&progress, "progress", false, "Print stage progress to stderr")
	return cmd
}

func readDocument(path string) (*core.Document, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, &core.ValidationError{Err: fmt.Errorf("open %s: %w", path, err)}
		}
		defer f.Close()
		r = f
	}
	return core.DecodeDocument(r)
}
