// Package main provides the casebook CLI.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "casebook:", err)
		os.Exit(exitCode(err))
	}
}
