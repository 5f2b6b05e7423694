// ABOUTME: XDG-based data directory resolution for the kicksight CLI.
// ABOUTME: Checks XDG_DATA_HOME, falls back to ~/.local/share/kicksight.
package main

import (
	"fmt"
	"os"
	"path/filepath"
)

// defaultDataDir returns the default directory for the conversation database.
// It checks XDG_DATA_HOME first, then falls back to ~/.local/share/kicksight.
func defaultDataDir() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "kicksight"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}

	return filepath.Join(home, ".local", "share", "kicksight"), nil
}
