package main

import "github.com/tikubank/qbank-admin/internal/cli"

func main() {
	cli.Execute()
}
