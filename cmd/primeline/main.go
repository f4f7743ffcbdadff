package main

import (
	"os"

	"github.com/moolen/primeline/cmd/primeline/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
