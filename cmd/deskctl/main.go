package main

import (
	"os"

	"optionDesk/cmd/deskctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
