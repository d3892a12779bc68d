// Package main provides the ingest CLI for loading documents into tenant collections.
package main

import (
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
