package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/aleister1102/overwatch/internal/common"
	"github.com/aleister1102/overwatch/internal/supervisor"
	"github.com/spf13/cobra"
)

func historyCmd(root *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent supervised runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd.Context(), root, limit, cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")

	return cmd
}

func runHistory(ctx context.Context, root *rootOptions, limit int, out io.Writer) error {
	a, err := root.load("history")
	if err != nil {
		return err
	}

	db, err := supervisor.NewHistoryDB(a.cfg.StorageConfig.HistoryDBPath, a.logger)
	if err != nil {
		return withExitCode(exitFailure, common.WrapError(err, "could not open run history"))
	}
	defer db.Close()

	runs, err := db.ListRuns(ctx, limit)
	if err != nil {
		return withExitCode(exitFailure, err)
	}
	return printRuns(out, runs)
}

func printRuns(out io.Writer, runs []supervisor.RunRecord) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(out, "No runs recorded.")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tDURATION\tSTATE\tSCANNER\tNOTIFIER\tDRY RUN\tQUERY")
	for _, r := range runs {
		duration := "-"
		if r.EndedAt.Valid {
			duration = r.EndedAt.Time.Sub(r.StartedAt).Round(time.Second).String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%t\t%s\n",
			r.StartedAt.Local().Format(time.DateTime),
			duration,
			r.State,
			exitCode(r.ProducerExit.Valid, r.ProducerExit.Int64),
			exitCode(r.ConsumerExit.Valid, r.ConsumerExit.Int64),
			r.DryRun,
			r.Query,
		)
	}
	return w.Flush()
}

func exitCode(valid bool, code int64) string {
	if !valid {
		return "-"
	}
	return strconv.FormatInt(code, 10)
}
