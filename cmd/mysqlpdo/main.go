package main

import (
	"os"

	"github.com/khavishbhundoo/mysql-pdo-class/pkg/cli"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	cli.SetVersion(version, commit)
	if err := cli.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
