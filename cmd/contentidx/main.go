// Package main provides the entry point for the contentidx CLI.
package main

import (
	"fmt"
	"os"

	"github.com/Aman-CERP/contentidx/cmd/contentidx/cmd"
	cerrors "github.com/Aman-CERP/contentidx/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		_, _ = fmt.Fprint(os.Stderr, cerrors.FormatForCLI(err))
		if cerrors.HasCode(err, cerrors.ErrCodeIndexInterrupted) {
			os.Exit(130)
		}
		os.Exit(1)
	}
}
