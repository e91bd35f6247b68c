package main

import (
	"os"

	"github.com/apresai/talkinghead/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
