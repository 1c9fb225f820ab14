package main

import (
	"os"

	"papersim/cmd/papersim/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
