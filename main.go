package main

import (
	"os"

	"github.com/kweber84/erpimport/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
