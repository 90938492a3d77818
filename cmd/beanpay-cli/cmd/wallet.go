package cmd

import (
	"encoding/json"
	"net/http"

	"github.com/spf13/cobra"
)

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "create the wallet of --user",
	RunE: func(cmd *cobra.Command, args []string) error {
		var wallet json.RawMessage
		if err := call(newClient().R().SetContext(cmd.Context()), http.MethodPost, "/wallet", &wallet); err != nil {
			return err
		}

		return printJson(cmd, wallet)
	},
}

var accountsOpt struct {
	refresh bool
}

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "list derived accounts and balances of --user",
	RunE: func(cmd *cobra.Command, args []string) error {
		req := newClient().R().SetContext(cmd.Context())
		if accountsOpt.refresh {
			req.SetQueryParam("refresh", "1")
		}

		var accounts json.RawMessage
		if err := call(req, http.MethodGet, "/wallet/accounts", &accounts); err != nil {
			return err
		}

		return printJson(cmd, accounts)
	},
}

var transferOpt struct {
	Index uint32 `json:"index"`
	To    string `json:"to"`
	Token string `json:"token,omitempty"`
	Value string `json:"value"`
	Wait  bool   `json:"wait"`
}

var transferCmd = &cobra.Command{
	Use:   "transfer",
	Short: "send AVAX or an ERC-20 token from --user",
	RunE: func(cmd *cobra.Command, args []string) error {
		var result json.RawMessage
		req := newClient().R().SetContext(cmd.Context()).SetBody(transferOpt)
		if err := call(req, http.MethodPost, "/wallet/transfers", &result); err != nil {
			return err
		}

		return printJson(cmd, result)
	},
}

func init() {
	rootCmd.AddCommand(walletCmd)
	rootCmd.AddCommand(accountsCmd)
	rootCmd.AddCommand(transferCmd)

	accountsCmd.Flags().BoolVar(&accountsOpt.refresh, "refresh", false, "refresh balances first")

	transferCmd.Flags().Uint32Var(&transferOpt.Index, "index", 0, "account index")
	transferCmd.Flags().StringVar(&transferOpt.To, "to", "", "recipient address")
	transferCmd.Flags().StringVar(&transferOpt.Token, "token", "", "token contract (optional, AVAX when empty)")
	transferCmd.Flags().StringVar(&transferOpt.Value, "value", "0", "amount in base units")
	transferCmd.Flags().BoolVar(&transferOpt.Wait, "wait", false, "wait for confirmation")
}
