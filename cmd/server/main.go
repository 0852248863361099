// Command server runs the catalog HTTP API.
package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/simp-lee/catalog/internal/app"
	"github.com/simp-lee/catalog/internal/config"
)

const configPathEnv = "CONFIG_PATH"

func main() {
	defaultPath := "configs/config.yaml"
	if p := os.Getenv(configPathEnv); p != "" {
		defaultPath = p
	}
	configPath := flag.String("config", defaultPath, "path to configuration file (env "+configPathEnv+")")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal("failed to load config", err)
	}

	a, err := app.New(cfg)
	if err != nil {
		fatal("failed to create app", err)
	}

	if err := a.Run(); err != nil {
		fatal("server error", err)
	}
}

func fatal(msg string, err error) {
	slog.Error(msg, slog.Any("error", err))
	os.Exit(1)
}
