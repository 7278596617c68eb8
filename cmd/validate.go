package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/loksabha/config"
	"github.com/mohammad-safakhou/loksabha/internal/sqlguard"
)

func validateCMD(cfgPath *string) *cobra.Command {
	var validate = &cobra.Command{
		Use:   "validate <sql>",
		Short: "Run the generated-statement validator on a SQL statement",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vc, err := config.LoadValidatorConfig(*cfgPath)
			if err != nil {
				return err
			}
			g := sqlguard.New(vc.Table, sqlguard.WithGrammarCheck(vc.GrammarCheck))
			return report(cmd.OutOrStdout(), g.Validate(strings.Join(args, " ")))
		},
	}
	return validate
}

func report(w io.Writer, err error) error {
	if err == nil {
		color.New(color.FgGreen).Fprintln(w, "valid")
		return nil
	}
	var gerr *sqlguard.Error
	if !errors.As(err, &gerr) {
		return err
	}
	c := color.New(color.FgYellow)
	if gerr.Unsafe() {
		c = color.New(color.FgRed)
	}
	c.Fprintf(w, "%s: %s\n", gerr.Kind, gerr.Reason)
	return fmt.Errorf("statement rejected: %s", gerr.Kind)
}
