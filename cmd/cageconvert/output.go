package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/rewired-gh/cageconvert/internal/action"
	"github.com/rewired-gh/cageconvert/internal/models"
	"github.com/rewired-gh/cageconvert/internal/storage"
)

func logError(w io.Writer, err error) {
	boldRed := color.New(color.FgRed, color.Bold)
	boldRed.Fprint(w, "\nerror: ")
	fmt.Fprintf(w, "%s\n\n", color.RedString(err.Error()))
}

func printResult(w io.Writer, res *action.Result) {
	if res == nil {
		return
	}

	for _, f := range res.Files {
		if f.Failed() {
			fmt.Fprintf(w, "%s %s: %s\n", color.YellowString("skipped"), f.Path, f.Error)
		}
	}
	fmt.Fprintf(w, "%d of %d files processed\n", res.Parsed(), len(res.Files))
	for _, p := range res.Run.Outputs {
		fmt.Fprintf(w, "%s %s\n", color.GreenString("saved"), p)
	}
}

func statusColor(status string) string {
	switch status {
	case models.RunSucceeded, models.FileParsed:
		return color.GreenString(status)
	case models.RunFailed: // same value as models.FileFailed
		return color.RedString(status)
	default:
		return color.YellowString(status)
	}
}

func newRunsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs [id]",
		Short: "Show recorded runs",
		Long: `Without arguments, list the most recent runs of the ledger.
With a run ID, list the files processed by that run.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			store, err := storage.New(cfg.Storage.DBPath)
			if err != nil {
				return fmt.Errorf("failed to open ledger: %w", err)
			}
			defer store.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			defer w.Flush()

			if len(args) == 1 {
				files, err := store.ListFiles(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(w, "FILE\tSIZE\tSTATUS\tSUBJECTS\tOBSERVATIONS\tFREQUENCY\tERROR")
				for _, f := range files {
					fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%ds\t%s\n", f.Path, humanize.Bytes(uint64(f.Size)),
						statusColor(f.Status), f.Subjects, f.Observations, f.Frequency, f.Error)
				}
				return nil
			}

			runs, err := store.RecentRuns(ctx, limit)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "ID\tACTION\tSTATUS\tSTARTED\tTOOK\tFREQUENCY\tOUTPUTS")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%d\n", r.ID, r.Action, statusColor(r.Status),
					humanize.Time(r.StartedAt), r.Duration().Round(time.Millisecond),
					strconv.FormatInt(r.Frequency, 10)+"s", len(r.Outputs))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "Number of runs to list")
	return cmd
}
