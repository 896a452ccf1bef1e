package main

import (
	"os"

	"consenthub/internal/app/cli"
)

func main() {
	os.Exit(cli.Execute())
}
