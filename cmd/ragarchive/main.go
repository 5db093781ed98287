// Package main provides the entry point for the ragarchive CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/ragarchive/cmd/ragarchive/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
