package main

import (
	"os"

	"github.com/wonny/holdwatch/backend/cmd/holdwatch/commands"
)

// main is the entry point for the holdwatch CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/holdwatch [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
