package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

func (a *App) replCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Run commands interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runREPL(cmd.Context(), bufio.NewScanner(a.in), cmd.OutOrStdout())
		},
	}
}

// runREPL reads command lines from scanner and executes each one through a
// fresh command tree sharing this App's connection. Command errors are
// printed and the loop goes on; it ends on EOF, "exit" or "quit".
func (a *App) runREPL(ctx context.Context, scanner *bufio.Scanner, out io.Writer) error {
	fmt.Fprintln(out, "Welcome to seccli (type 'help' for commands, 'exit' to leave)")

	for {
		fmt.Fprint(out, "seccli> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}

		switch parts[0] {
		case "exit", "quit":
			fmt.Fprintln(out, "Bye!")
			return nil
		case "repl":
			fmt.Fprintln(out, "already in repl")
			continue
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		root := a.newRootCmd()
		root.SetOut(out)
		root.SetErr(out)
		root.SetArgs(parts)
		if err := root.ExecuteContext(ctx); err != nil {
			fmt.Fprintln(out, "Error:", err)
		}
	}
}
