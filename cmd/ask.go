package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/loksabha/internal/nlsql"
	srv "github.com/mohammad-safakhou/loksabha/internal/server"
)

func askCMD(cfgPath *string) *cobra.Command {
	var noHints bool
	var ask = &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question about the election data from the command line",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := loadApp(*cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.openStore(ctx); err != nil {
				return err
			}
			if err := a.buildPipeline(ctx); err != nil {
				return err
			}
			if noHints {
				a.pipeline.Hints = nil
			} else {
				r, err := srv.NewRefresher(a.cfg.Refresh.Schedule, a.store, a.cache, a.index, a.logger)
				if err != nil {
					return err
				}
				if err := r.Refresh(ctx); err != nil {
					a.logger.Warn("value hints unavailable", zap.Error(err))
				}
			}

			attempt, err := a.pipeline.Ask(ctx, strings.Join(args, " "))
			printAttempt(cmd.OutOrStdout(), attempt, err)
			return err
		},
	}
	ask.Flags().BoolVar(&noHints, "no-hints", false, "skip dataset value hints in the prompt")
	return ask
}

func printAttempt(w io.Writer, a *nlsql.Attempt, err error) {
	if a != nil && a.SQL != "" {
		color.New(color.FgCyan).Fprintln(w, "SQL:")
		fmt.Fprintln(w, a.SQL)
	}
	if err != nil {
		var se *nlsql.StageError
		if errors.As(err, &se) {
			color.New(color.FgRed).Fprintf(w, "%s rejected (%s): %s\n", se.Stage, se.Kind, se.Reason())
		}
		return
	}

	fmt.Fprintln(w)
	renderRows(w, a.Columns, a.Rows)
	color.New(color.FgYellow).Fprintf(w, "%d rows", a.TotalRows)
	if a.TotalRows > len(a.Rows) {
		fmt.Fprintf(w, " (showing %d)", len(a.Rows))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w)
	color.New(color.FgGreen).Fprintln(w, "Answer:")
	fmt.Fprintln(w, a.Answer)
}

func renderRows(w io.Writer, columns []string, rows []map[string]any) {
	if len(columns) == 0 {
		return
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader(columns)
	for _, r := range rows {
		row := make([]string, len(columns))
		for i, c := range columns {
			if v := r[c]; v != nil {
				row[i] = fmt.Sprint(v)
			}
		}
		table.Append(row)
	}
	table.Render()
}
