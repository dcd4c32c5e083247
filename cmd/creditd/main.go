package main

import (
	"os"

	"github.com/crediton-network/crediton/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
