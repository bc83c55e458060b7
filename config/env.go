package config

import (
	"errors"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// LoadFromEnv applies environment overrides with a prefix, e.g.
// SCHOOLGATE_BASE_URL. Unset variables leave base untouched.
func LoadFromEnv(prefix string, base Config) (Config, error) {
	if err := envconfig.Process(prefix, &base); err != nil {
		return base, err
	}
	return base, nil
}

// LoadDotenv loads a dotenv file into the process environment. Variables
// that are already set win over the file.
func LoadDotenv(path string, allowMissing bool) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if allowMissing && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}
