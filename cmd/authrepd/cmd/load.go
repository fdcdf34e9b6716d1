package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/3scale-labs/authrep-filter/internal/config"
)

func loadConfigFromFlags() (*config.Config, error) {
	path := viper.GetString("config")
	if path == "" {
		return nil, fmt.Errorf("--config is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	format := config.FormatJSON
	if viper.GetString("config-format") == "yaml" {
		format = config.FormatYAML
	}

	return config.Load(data, format)
}
