package main

import (
	"os"

	"github.com/nhle/mailassist/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
