package main

import (
	"os"

	"github.com/geox/judge/cmd/judge/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
