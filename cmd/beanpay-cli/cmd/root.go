package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "beanpay-cli",
	Short: "client for the beanpay api",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("endpoint", "l", "http://localhost:8080", "api endpoint")
	rootCmd.PersistentFlags().StringP("user", "u", "", "user id sent as X-User-ID")
	_ = viper.BindPFlag("endpoint", rootCmd.PersistentFlags().Lookup("endpoint"))
	_ = viper.BindPFlag("user", rootCmd.PersistentFlags().Lookup("user"))
	viper.SetEnvPrefix("beanpay")
	viper.AutomaticEnv()
}

type apiError struct {
	Error struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	} `json:"error"`
}

func newClient() *resty.Client {
	client := resty.New().SetBaseURL(viper.GetString("endpoint") + "/api")
	if user := viper.GetString("user"); user != "" {
		client.SetHeader("X-User-ID", user)
	}

	return client
}

// call sends the request and decodes the data envelope into out.
func call(req *resty.Request, method, url string, out any) error {
	var data struct {
		Data json.RawMessage `json:"data"`
	}

	var e apiError
	resp, err := req.SetResult(&data).SetError(&e).Execute(method, url)
	if err != nil {
		return err
	}

	if resp.IsError() {
		return fmt.Errorf("%s: %s", resp.Status(), e.Error.Msg)
	}

	return json.Unmarshal(data.Data, out)
}

func printJson(cmd *cobra.Command, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	cmd.Println(string(b))
	return nil
}
