package cmds

import (
	"context"
	"encoding/json"
	"os"

	"github.com/pandodao/beanpay/core"
	"github.com/pandodao/beanpay/service/keyring"
	"github.com/pandodao/generic"
	"github.com/spf13/cobra"
)

type Cmd struct {
	Wallets  core.WalletStore
	Sessions core.SessionService
}

func (c *Cmd) Run(ctx context.Context, args []string) error {
	root := &cobra.Command{
		Use:   "beanpay-worker",
		Short: "beanpay maintenance commands",
	}

	root.AddCommand(c.listWalletsCmd())
	root.AddCommand(c.checkWalletCmd())
	root.AddCommand(c.listSessionsCmd())
	root.AddCommand(c.expireSessionCmd())

	root.SetArgs(args)
	root.SetOut(os.Stdout)

	return root.ExecuteContext(ctx)
}

// walletView never carries the seed phrase.
type walletView struct {
	UserID         string `json:"user_id"`
	PrimaryAccount string `json:"primary_account"`
	Derived        string `json:"derived,omitempty"`
}

func viewWallet(wallet *core.Wallet) walletView {
	return walletView{UserID: wallet.UserID, PrimaryAccount: wallet.PrimaryAccount}
}

func (c *Cmd) listWalletsCmd() *cobra.Command {
	var (
		offset string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "wallets",
		Short: "list custodial wallets",
		RunE: func(cmd *cobra.Command, args []string) error {
			wallets, err := c.Wallets.List(cmd.Context(), offset, limit)
			if err != nil {
				return err
			}

			return jsonPrint(cmd, generic.MapSlice(wallets, viewWallet))
		},
	}

	cmd.Flags().StringVar(&offset, "offset", "", "list users after this id")
	cmd.Flags().IntVar(&limit, "limit", 100, "page size")
	return cmd
}

func (c *Cmd) checkWalletCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-wallet <user-id>",
		Short: "compare the stored primary account with the derived one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wallet, err := c.Wallets.Find(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			key, err := keyring.Derive(wallet.SeedPhrase, 0)
			if err != nil {
				return err
			}

			view := viewWallet(wallet)
			view.Derived = key.Address.Hex()
			return jsonPrint(cmd, view)
		},
	}
}

func (c *Cmd) listSessionsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "sessions <seller-address>",
		Short: "list the latest payment sessions of a seller",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessions, err := c.Sessions.ListSeller(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}

			return jsonPrint(cmd, sessions)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "max sessions")
	return cmd
}

func (c *Cmd) expireSessionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "expire-session <session-id>",
		Short: "expire an overdue pending session now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := c.Sessions.MarkExpired(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			return jsonPrint(cmd, session)
		},
	}
}

func jsonPrint(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
