package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/secledger/internal/client/cli"
)

func main() {

	ctx := context.Background()
	app := cli.NewApp()

	if err := app.Run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

}
