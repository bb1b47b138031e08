// Package main provides admin management utilities for Agora.
package main

import (
	"fmt"
	"os"

	"agora/internal/config"
	"agora/internal/database"

	"gorm.io/gorm"
)

func main() {
	open := func() (*gorm.DB, error) {
		cfg, err := config.LoadConfig()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		return database.Connect(cfg)
	}

	if err := newRootCmd(open).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
