package config

import (
	"fmt"
	"os"

	gotoml "github.com/pelletier/go-toml/v2"
)

// Render encodes cfg as a TOML document that Load reads back unchanged.
func Render(cfg Config) ([]byte, error) {
	out, err := gotoml.Marshal(cfg.toFile())
	if err != nil {
		return nil, fmt.Errorf("config render failed: %w", err)
	}
	return out, nil
}

// WriteTemplate writes the default config to path.
func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	data, err := Render(Default())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
