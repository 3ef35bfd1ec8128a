package configutil

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/titanous/json5"
)

// LocalPath returns the path of the local override file for name,
// ex. "config/nadlan.json5" -> "config/nadlan.local.json5".
func LocalPath(name string) string {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + ".local" + ext
}

func readJson5[T any](path string, out *T) (bool, error) {
	contents, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(contents) == 0 {
		return false, nil
	}
	err = json5.Unmarshal(contents, out)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", path, err)
	}
	return true, nil
}

// reads a configuration file, `name` should come with a file extension.
// this function will decode the following files over each other, where higher number is more prioritized.
// 1. <name>.<ext>
// 2. <name>.local.<ext>
//
// os.ErrNotExist is returned if neither file exists.
func ReadConfig[T any](name string) (T, error) {
	var zero T
	return ReadConfigOver(name, zero)
}

// ReadConfigOver is ReadConfig starting from base instead of the zero value,
// fields missing from both files keep their value in base. Fields present in a
// file always win, zero values included.
func ReadConfigOver[T any](name string, base T) (T, error) {
	out := base

	foundDefault, err := readJson5(name, &out)
	if err != nil {
		return base, err
	}

	localPath := LocalPath(name)
	foundLocal, err := readJson5(localPath, &out)
	if err != nil {
		return base, err
	}
	if foundLocal {
		slog.Info("merging config with local overrides", "local", localPath)
	}

	if !foundDefault && !foundLocal {
		return base, os.ErrNotExist
	}
	return out, nil
}

// ReadConfigOver but it recursively goes up the filesystem until the root
// to find a configuration file matching the name.
func ReadRecursively[T any](name string, base T) (T, error) {
	current, err := os.Getwd()
	if err != nil {
		return base, err
	}

	for {
		config, err := ReadConfigOver(filepath.Join(current, name), base)
		if err == nil {
			return config, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return base, err
		}

		parent := filepath.Dir(current)
		if parent == current {
			return base, os.ErrNotExist
		}
		current = parent
	}
}

// ReadOptional is ReadConfigOver (or ReadRecursively if recursive is set) that reports a
// missing file through `found` instead of an error, in which case base is returned.
func ReadOptional[T any](name string, recursive bool, base T) (config T, found bool, err error) {
	if recursive {
		config, err = ReadRecursively(name, base)
	} else {
		config, err = ReadConfigOver(name, base)
	}
	if errors.Is(err, os.ErrNotExist) {
		return base, false, nil
	}
	if err != nil {
		return config, false, err
	}
	return config, true, nil
}
