package config_test

import (
	"fmt"

	"github.com/wonny/aegis-signals/pkg/config"
)

// Example demonstrates how to use the config package
func Example() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		return
	}

	fmt.Printf("Server running on port: %s\n", cfg.Port)
	fmt.Printf("Bar source: %s\n", cfg.Analysis.BarSource)
	fmt.Printf("Workers: %d\n", cfg.Analysis.Workers)
	fmt.Printf("Needs database: %v\n", cfg.NeedsDatabase())
}
