package config

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Render writes cfg to w as YAML.
func Render(w io.Writer, cfg ResolvedConfig) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return enc.Close()
}
