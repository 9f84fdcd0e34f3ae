package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shiwa/timecard-mini/dgtclock/internal/serclock"
)

// newPortsCmd — "dgtclock ports": порты, которые видит port: auto (первый — выбранный).
func newPortsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List serial ports, board candidates first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := serclock.ListPorts()
			if err != nil {
				return err
			}
			if len(ports) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no serial ports found")
				return nil
			}
			for _, p := range ports {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}
}
