package main

import (
	"os"

	"github.com/wonny/aegis-signals/cmd/signals/commands"
)

// main is the entry point for the signals CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/signals [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
