package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// ErrInvalidMode is returned for modes that cannot select an env overlay.
var ErrInvalidMode = errors.New("invalid mode")

// EnvFiles lists the env files for mode in ascending priority.
func EnvFiles(dir, mode string) []string {
	names := []string{".env", ".env.local", ".env." + mode, ".env." + mode + ".local"}

	paths := make([]string, 0, len(names))
	for _, n := range names {
		paths = append(paths, filepath.Join(dir, n))
	}
	return paths
}

// LoadEnv merges the env files for mode found in dir with environ, a list
// of KEY=VALUE pairs as returned by os.Environ. Later files override earlier
// ones and environ overrides every file. Missing files are skipped.
func LoadEnv(dir, mode string, environ []string) (map[string]string, error) {
	if err := validateMode(mode); err != nil {
		return nil, err
	}

	vars := make(map[string]string)
	for _, path := range EnvFiles(dir, mode) {
		fileVars, err := readEnvFile(path)
		if err != nil {
			return nil, err
		}
		for k, v := range fileVars {
			vars[k] = v
		}
	}

	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		vars[k] = v
	}
	return vars, nil
}

func validateMode(mode string) error {
	switch strings.TrimSpace(mode) {
	case "":
		return fmt.Errorf("%w: mode must not be empty", ErrInvalidMode)
	case "local":
		// .env.local is the per-machine overlay, not a mode.
		return fmt.Errorf("%w: %q cannot be used as a mode name", ErrInvalidMode, mode)
	}
	if strings.ContainsAny(mode, `/\`) {
		return fmt.Errorf("%w: %q must not contain path separators", ErrInvalidMode, mode)
	}
	return nil
}

func readEnvFile(path string) (map[string]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to stat env file %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("env file %s is a directory", path)
	}

	vars, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse env file %s: %w", path, err)
	}
	return vars, nil
}
