package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/secledger/internal/client/config"
	"github.com/spf13/cobra"
)

const flagConfig = "config"

func (a *App) newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "seccli",
		Short:         "seccli manages devices, Face ID, buddies and 2FA on a secledger server.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString(flagConfig)
			return a.connect(file)
		},
	}
	cmd.SetOut(a.out)
	cmd.SetErr(a.out)

	cmd.PersistentFlags().String(flagConfig, "", "config file (json, yaml or toml)")
	cmd.PersistentFlags().StringP(config.KeyServer, "a", "", "address and port of the server")
	cmd.PersistentFlags().Duration(config.KeyTimeout, 0, "timeout of a single request")

	_ = a.viper.BindPFlag(config.KeyServer, cmd.PersistentFlags().Lookup(config.KeyServer))
	_ = a.viper.BindPFlag(config.KeyTimeout, cmd.PersistentFlags().Lookup(config.KeyTimeout))

	cmd.AddCommand(
		a.showCmd(),
		a.deviceCmd(),
		a.faceIDCmd(),
		a.buddyCmd(),
		a.twoFactorCmd(),
		a.replCmd(),
	)
	return cmd
}

func (a *App) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <user>",
		Short: "Print the security record of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.call(cmd, func(ctx context.Context) (any, error) {
				return a.client.GetSecurity(ctx, args[0])
			})
		},
	}
}

// call runs fn with a request timeout and prints its result.
func (a *App) call(cmd *cobra.Command, fn func(ctx context.Context) (any, error)) error {
	ctx, cancel := a.callContext(cmd.Context())
	defer cancel()

	res, err := fn(ctx)
	if err != nil {
		return err
	}
	return printResult(cmd, res)
}

func printResult(cmd *cobra.Command, res any) error {
	if msg, ok := res.(string); ok {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), msg)
		return err
	}
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}
