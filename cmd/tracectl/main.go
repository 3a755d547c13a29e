package main

import (
	"os"

	"github.com/majorcontext/tracectl/cmd/tracectl/cli"
)

func main() {
	os.Exit(cli.Execute())
}
