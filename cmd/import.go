package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func importCMD(cfgPath *string) *cobra.Command {
	var imp = &cobra.Command{
		Use:   "import <csv>",
		Short: "Bulk load a TCPD Lok Sabha CSV export into the election table",
		Args:  cobra.ExactArgs(1),
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
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			n, err := a.store.ImportCSV(ctx, f)
			if err != nil {
				return fmt.Errorf("import %s: %w", args[0], err)
			}
			a.logger.Info("import finished", zap.String("file", args[0]), zap.Int64("rows", n))
			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "imported %d rows\n", n)
			return nil
		},
	}
	return imp
}
