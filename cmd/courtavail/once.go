package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newOnceCmd(configPath *string) *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "once",
		Short: "Run one fetch and build cycle, save the report and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*configPath)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			rep, err := a.runner.Run(ctx)
			if err != nil {
				return err
			}
			if quiet {
				return nil
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rep)
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not print the report")
	return cmd
}
