package main

import (
	"os"

	"github.com/wonny/consolidator/cmd/consolidate/commands"
)

// main is the entry point for the consolidator CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/consolidate [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
