package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/shiwa/timecard-mini/dgtclock/internal/dgt"
	"github.com/shiwa/timecard-mini/dgtclock/internal/webclock"
)

// newStatusCmd — "dgtclock status".
func newStatusCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show devices of a running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := webclock.NewClient(addrFlag(cmd)).Status(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(st)
			}
			printStatus(cmd.OutOrStdout(), st)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "вывод в JSON")
	return cmd
}

// newMenuCmd — "dgtclock menu on|off": режим обновления меню.
func newMenuCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "menu on|off",
		Short:     "Enter or leave update menu mode",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] != "on" && args[0] != "off" {
				return fmt.Errorf("menu: want on or off, got %q", args[0])
			}
			return webclock.NewClient(addrFlag(cmd)).SetMenu(cmd.Context(), args[0] == "on")
		},
	}
}

func printStatus(w io.Writer, st webclock.Status) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DEVICE\tCONNECTED\tTIMER\tDELAYED\tRUNNING")
	for _, d := range st.Devices {
		fmt.Fprintf(tw, "%s\t%v\t%v\t%d\t%v\n", d.Name, d.Connected, d.TimerRunning, d.Delayed, d.ClockRunning)
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "priority %s, time factor %v, pending %d, update menu %v\n",
		st.Priority, st.TimeFactor, st.Pending, st.Menu.UpdateMenu)
	disp := st.Display
	if disp.Mode == webclock.ModeText {
		fmt.Fprintf(w, "web: [%s]\n", disp.Text)
	} else {
		fmt.Fprintf(w, "web: %s %s (%s)\n", dgt.FormatHMS(disp.Left), dgt.FormatHMS(disp.Right), disp.Running)
	}
}
