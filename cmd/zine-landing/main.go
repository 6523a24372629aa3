package main

import (
	"os"

	"github.com/zine-studio/zine-landing/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
