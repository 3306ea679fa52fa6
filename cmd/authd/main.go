package main

import (
	"os"

	"github.com/onpaws/refresh-token-postgraphile/cmd/internal/app"
)

func main() {
	// app.Run logs its own failures.
	if err := app.Run(); err != nil {
		os.Exit(1)
	}
}
