package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// EnvFileName is read from the config file's directory before environment
// fallbacks are resolved.
const EnvFileName = ".env"

// loadEnvFile exports variables from the .env file beside configPath.
// Variables already present in the process environment win.
func loadEnvFile(configPath string) error {
	if configPath == "" {
		return nil
	}
	envPath := filepath.Join(filepath.Dir(configPath), EnvFileName)
	if _, err := os.Stat(envPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat env file: %w", err)
	}
	if err := godotenv.Load(envPath); err != nil {
		return fmt.Errorf("load env file %s: %w", envPath, err)
	}
	return nil
}
