package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shiwa/timecard-mini/dgtclock/internal/command"
	"github.com/shiwa/timecard-mini/dgtclock/internal/webclock"
)

// newSendCmd — "dgtclock send [опции] <глагол> ...".
func newSendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send [options] <verb> [args...]",
		Short: "Send one command to a running daemon",
		Long:  "Грамматика команды:\n  " + command.Usage,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := command.Parse(args)
			if err != nil {
				return err
			}
			res, err := webclock.NewClient(addrFlag(cmd)).Submit(cmd.Context(), c)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", res.Kind, res.ID)
			return nil
		},
	}
}
