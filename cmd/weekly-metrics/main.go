package main

import (
	"fmt"
	"os"

	"weekly-metrics/cmd/weekly-metrics/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
