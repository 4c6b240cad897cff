package cli

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"

	"github.com/dmitrijs2005/secledger/internal/common"
	"github.com/dmitrijs2005/secledger/internal/filex"
	"github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"
)

func (a *App) deviceCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "device", Short: "Manage registered devices"}
	cmd.AddCommand(&cobra.Command{
		Use:   "add <user> <id> <name>",
		Short: "Register a device",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.call(cmd, func(ctx context.Context) (any, error) {
				return a.client.RegisterDevice(ctx, args[0], args[1], args[2])
			})
		},
	})
	return cmd
}

func (a *App) faceIDCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "faceid", Short: "Manage the Face ID template"}

	var file string
	enroll := &cobra.Command{
		Use:   "enroll <user> [template]",
		Short: "Store a Face ID template, given inline or read from --file",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var template string
			switch {
			case len(args) == 2:
				template = args[1]
			case file != "":
				data, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				template = base64.StdEncoding.EncodeToString(data)
			default:
				return fmt.Errorf("%w: template or --file required", common.ErrorInvalidArgument)
			}
			return a.call(cmd, func(ctx context.Context) (any, error) {
				return a.client.EnrollFaceID(ctx, args[0], template)
			})
		},
	}
	enroll.Flags().StringVar(&file, "file", "", "read the template from a file (sent base64 encoded)")

	remove := &cobra.Command{
		Use:   "remove <user>",
		Short: "Remove the Face ID template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.call(cmd, func(ctx context.Context) (any, error) {
				return a.client.RemoveFaceID(ctx, args[0])
			})
		},
	}

	cmd.AddCommand(enroll, remove)
	return cmd
}

func (a *App) buddyCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "buddy", Short: "Pair users as trusted buddies"}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "request <from> <to>",
			Short: "Ask another user to become your buddy",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.call(cmd, func(ctx context.Context) (any, error) {
					return a.client.RequestBuddy(ctx, args[0], args[1])
				})
			},
		},
		&cobra.Command{
			Use:   "respond <to> <from> <accept|decline>",
			Short: "Accept or decline a pending buddy request",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.call(cmd, func(ctx context.Context) (any, error) {
					return a.client.RespondToBuddy(ctx, args[0], args[1], args[2])
				})
			},
		},
	)
	return cmd
}

func (a *App) twoFactorCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "2fa", Short: "Two-factor authentication"}

	var qrFile string
	var ascii bool
	setup := &cobra.Command{
		Use:   "setup <user>",
		Short: "Issue a new TOTP secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.callContext(cmd.Context())
			defer cancel()

			res, err := a.client.SetupTwoFactor(ctx, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Secret: %s\nURL:    %s\n", res.Secret, res.OTPAuthURL)
			if qrFile != "" {
				if err := filex.WriteFileAtomic(qrFile, res.QRCode, 0o600); err != nil {
					return err
				}
				fmt.Fprintf(out, "QR code written to %s\n", qrFile)
			}
			if ascii {
				q, err := qrcode.New(res.OTPAuthURL, qrcode.Medium)
				if err != nil {
					return err
				}
				fmt.Fprint(out, q.ToString(false))
			}
			return nil
		},
	}
	setup.Flags().StringVar(&qrFile, "qr", "", "write the QR code PNG to this file")
	setup.Flags().BoolVar(&ascii, "ascii", false, "print the QR code to the terminal")

	verify := &cobra.Command{
		Use:   "verify <user> [code]",
		Short: "Confirm the secret with a current code and enable 2FA",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := a.codeArg(cmd, args)
			if err != nil {
				return err
			}
			return a.call(cmd, func(ctx context.Context) (any, error) {
				return a.client.VerifyAndEnable(ctx, args[0], code)
			})
		},
	}

	disable := &cobra.Command{
		Use:   "disable <user>",
		Short: "Turn 2FA off and forget the secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.call(cmd, func(ctx context.Context) (any, error) {
				return a.client.DisableTwoFactor(ctx, args[0])
			})
		},
	}

	login := &cobra.Command{
		Use:   "login <user> [code]",
		Short: "Check a login code and print the signed assertion",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := a.codeArg(cmd, args)
			if err != nil {
				return err
			}
			return a.call(cmd, func(ctx context.Context) (any, error) {
				return a.client.LoginVerify(ctx, args[0], code)
			})
		},
	}

	check := &cobra.Command{
		Use:   "check <assertion>",
		Short: "Validate an assertion and print its user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.call(cmd, func(ctx context.Context) (any, error) {
				return a.client.CheckAssertion(ctx, args[0])
			})
		},
	}

	cmd.AddCommand(setup, verify, disable, login, check)
	return cmd
}

// codeArg returns the code from args[1] or prompts for it.
func (a *App) codeArg(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 1 {
		return args[1], nil
	}
	return GetCode(cmd.OutOrStdout())
}
