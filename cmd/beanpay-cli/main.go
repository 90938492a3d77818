package main

import "github.com/pandodao/beanpay/cmd/beanpay-cli/cmd"

func main() {
	cmd.Execute()
}
