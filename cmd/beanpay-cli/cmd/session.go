package cmd

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/pandodao/beanpay/core"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var sessionOpt struct {
	Seller      string  `json:"seller_wallet_address,omitempty"`
	ProductID   *uint64 `json:"product_id,omitempty"`
	ProductName string  `json:"product_name,omitempty"`
	Amount      string  `json:"amount,omitempty"`

	product uint64
}

var sessionCmd = &cobra.Command{
	Use:   "session [id]",
	Short: "create a payment session, or show one by id",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := newClient().R().SetContext(cmd.Context())

		var view json.RawMessage
		if len(args) == 1 {
			if err := call(req, http.MethodGet, "/sessions/"+args[0], &view); err != nil {
				return err
			}

			return printJson(cmd, view)
		}

		if cmd.Flags().Changed("product") {
			sessionOpt.ProductID = &sessionOpt.product
		}

		if err := call(req.SetBody(sessionOpt), http.MethodPost, "/sessions", &view); err != nil {
			return err
		}

		return printJson(cmd, view)
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch <session-id>",
	Short: "stream a session until it is paid or expired",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		url := strings.Replace(viper.GetString("endpoint"), "http", "ws", 1) + "/api/sessions/" + args[0] + "/watch"
		conn, _, err := websocket.DefaultDialer.DialContext(cmd.Context(), url, nil)
		if err != nil {
			return err
		}
		defer conn.Close()

		for {
			var msg json.RawMessage
			if err := conn.ReadJSON(&msg); err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					return nil
				}

				return err
			}

			if err := printJson(cmd, msg); err != nil {
				return err
			}
		}
	},
}

var (
	checkoutOpt core.CheckoutRequest
	nativeValue string
)

var checkoutCmd = &cobra.Command{
	Use:   "checkout <qr-payload>",
	Short: "pay a scanned QR payload from --user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		checkoutOpt.Payload = args[0]
		if nativeValue != "" {
			v, err := decimal.NewFromString(nativeValue)
			if err != nil {
				return err
			}

			checkoutOpt.NativeValue = v
		}

		var receipt json.RawMessage
		req := newClient().R().SetContext(cmd.Context()).SetBody(checkoutOpt)
		if err := call(req, http.MethodPost, "/wallet/checkout", &receipt); err != nil {
			return err
		}

		return printJson(cmd, receipt)
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(checkoutCmd)

	sessionCmd.Flags().StringVar(&sessionOpt.Seller, "seller", "", "seller address (defaults to the --user primary account)")
	sessionCmd.Flags().Uint64Var(&sessionOpt.product, "product", 0, "product id")
	sessionCmd.Flags().StringVar(&sessionOpt.ProductName, "name", "", "product name")
	sessionCmd.Flags().StringVar(&sessionOpt.Amount, "amount", "", "amount in base units")

	checkoutCmd.Flags().StringVar((*string)(&checkoutOpt.Method), "method", string(core.PaymentMethodUSDC), "USDC, USDT or AVAX")
	checkoutCmd.Flags().Uint32Var(&checkoutOpt.Index, "index", 0, "account index")
	checkoutCmd.Flags().StringVar(&nativeValue, "native-value", "", "quoted AVAX amount in wei, required for AVAX")
}
