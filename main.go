package main

import (
	"github.com/joho/godotenv"
	"github.com/rolandojf-gif/ai-intel-briefing-v3/cmd"
)

// Set via -ldflags at release time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// A missing .env is fine; env vars may come from the CI environment.
	_ = godotenv.Load()

	cmd.SetVersionInfo(version, commit, date)
	cmd.Execute()
}
