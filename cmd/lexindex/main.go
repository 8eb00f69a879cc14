// Package main provides the entry point for the lexindex CLI.
package main

import (
	"fmt"
	"os"

	"github.com/Aman-CERP/lexindex/cmd/lexindex/cmd"
	lexerrors "github.com/Aman-CERP/lexindex/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprint(os.Stderr, lexerrors.FormatForCLI(err))
		os.Exit(1)
	}
}
