package config

import (
	"os"
	"path/filepath"
)

// GetUserConfigDir returns $AM_CONFIG_DIR if set, else ~/.attention-matters.
func GetUserConfigDir() (string, error) {
	if dir := os.Getenv("AM_CONFIG_DIR"); dir != "" {
		return dir, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(homeDir, ".attention-matters"), nil
}

// GetProjectDir walks up from the working directory looking for a
// .attention-matters or .git directory, falling back to the working
// directory itself.
func GetProjectDir() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	dir := wd
	for {
		amDir := filepath.Join(dir, ".attention-matters")
		if _, err := os.Stat(amDir); err == nil {
			return dir, nil
		}

		gitDir := filepath.Join(dir, ".git")
		if _, err := os.Stat(gitDir); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return wd, nil
		}
		dir = parent
	}
}

func EnsureConfigDirs(userConfigDir, projectDir string) error {
	if err := os.MkdirAll(userConfigDir, 0755); err != nil {
		return err
	}

	projectConfigDir := filepath.Join(projectDir, ".attention-matters")
	if err := os.MkdirAll(projectConfigDir, 0755); err != nil {
		return err
	}

	return nil
}
