// Package main is the entry point for the schoolgate CLI binary.
package main

import (
	"os"

	"github.com/devmarvs/schoolgate/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
