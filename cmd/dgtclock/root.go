package main

import (
	"github.com/spf13/cobra"
)

const defaultAddr = "localhost:7070"

// newRootCmd создаёт команду dgtclock со всеми подкомандами.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "dgtclock",
		Short:         "DGT clock command daemon",
		Long:          "dgtclock раздаёт команды дисплея часам ser, i2c и web\nс подавлением повторов и отложенным показом.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().String("addr", defaultAddr, "адрес HTTP API демона")

	cmd.AddCommand(
		newRunCmd(),
		newSendCmd(),
		newConsoleCmd(),
		newStatusCmd(),
		newMenuCmd(),
		newPortsCmd(),
	)
	return cmd
}

func addrFlag(cmd *cobra.Command) string {
	addr, err := cmd.Flags().GetString("addr")
	if err != nil || addr == "" {
		return defaultAddr
	}
	return addr
}
