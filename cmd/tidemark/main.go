// Package main is the entry point for the tidemark binary.
package main

import (
	"os"

	"tidemark/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
