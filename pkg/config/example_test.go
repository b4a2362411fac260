package config_test

import (
	"fmt"

	"github.com/wonny/consolidator/pkg/config"
)

// Example demonstrates how to use the config package
func Example() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		return
	}

	fmt.Printf("Shards: %s\n", cfg.Paths.ShardDir)
	fmt.Printf("Output: %s\n", cfg.Paths.OutputDir)
	fmt.Printf("DuckDB memory limit: %s\n", cfg.DuckDB.MemoryLimit)
	fmt.Printf("Publish mode: %s\n", cfg.Publish.Mode)
}
