package config

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFromFile loads a JSON or YAML file, chosen by extension, over base.
func LoadFromFile(path string, base Config) (Config, error) {
	return loadFile(path, base, false)
}

// Load loads config from file (if provided), applies env overrides and
// resolves the environment tier.
func Load(path, envPrefix string) (Config, error) {
	return LoadProfile(Profile{BasePath: path, EnvPrefix: envPrefix})
}

func loadFile[T any](path string, base T, allowMissing bool) (T, error) {
	file, err := os.Open(path)
	if err != nil {
		if allowMissing && errors.Is(err, os.ErrNotExist) {
			return base, nil
		}
		return base, err
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		decoder := yaml.NewDecoder(file)
		decoder.KnownFields(true)
		if err := decoder.Decode(&base); err != nil && !errors.Is(err, io.EOF) {
			return base, err
		}
	default:
		decoder := json.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&base); err != nil {
			return base, err
		}
	}
	return base, nil
}
