package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/shiwa/timecard-mini/dgtclock/internal/command"
	"github.com/shiwa/timecard-mini/dgtclock/internal/webclock"
)

// newConsoleCmd — "dgtclock console": интерактивная отправка команд.
func newConsoleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Interactive command console for a running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			rl, err := readline.NewEx(&readline.Config{
				Prompt:          "dgt> ",
				InterruptPrompt: "^C",
				EOFPrompt:       "exit",
			})
			if err != nil {
				return fmt.Errorf("readline: %w", err)
			}
			defer rl.Close()

			con := &console{client: webclock.NewClient(addrFlag(cmd)), out: rl.Stdout()}
			con.help()
			for {
				line, err := rl.Readline()
				if errors.Is(err, readline.ErrInterrupt) {
					continue
				}
				if err != nil {
					return nil
				}
				if quit := con.exec(cmd.Context(), line); quit {
					return nil
				}
			}
		},
	}
}

type console struct {
	client *webclock.Client
	out    io.Writer
}

func (c *console) help() {
	fmt.Fprintf(c.out, "команды: help, status, menu on|off, quit\nили команда часам:\n  %s\n", command.Usage)
}

// exec выполняет строку консоли; true — выход.
func (c *console) exec(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	switch strings.ToLower(fields[0]) {
	case "quit", "exit", "q":
		return true
	case "help", "?":
		c.help()
		return false
	case "status":
		st, err := c.client.Status(ctx)
		if err != nil {
			fmt.Fprintf(c.out, "error: %v\n", err)
			return false
		}
		printStatus(c.out, st)
		return false
	case "menu":
		if len(fields) != 2 || (fields[1] != "on" && fields[1] != "off") {
			fmt.Fprintln(c.out, "usage: menu on|off")
			return false
		}
		if err := c.client.SetMenu(ctx, fields[1] == "on"); err != nil {
			fmt.Fprintf(c.out, "error: %v\n", err)
		}
		return false
	}

	cmd, err := command.Parse(fields)
	if err != nil {
		fmt.Fprintf(c.out, "error: %v\n", err)
		return false
	}
	res, err := c.client.Submit(ctx, cmd)
	if err != nil {
		fmt.Fprintf(c.out, "error: %v\n", err)
		return false
	}
	fmt.Fprintf(c.out, "%s %s\n", res.Kind, res.ID)
	return false
}
