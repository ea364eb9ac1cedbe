package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"vareview/internal/bundle"
	"vareview/internal/config"
	"vareview/internal/source"
)

// collectInputs expands args into file handles. Directories contribute their
// regular files (hidden entries skipped) and zip archives contribute their
// entries.
func collectInputs(args []string) ([]source.File, []string, error) {
	if len(args) == 0 {
		return nil, nil, errors.New("at least one file, directory, or zip archive is required")
	}
	var (
		files    []source.File
		warnings []string
	)
	for _, arg := range args {
		path, err := config.ExpandPath(strings.TrimSpace(arg))
		if err != nil {
			return nil, nil, err
		}
		info, err := os.Stat(path)
		if err != nil {
			return nil, nil, fmt.Errorf("inspect %q: %w", path, err)
		}
		switch {
		case info.IsDir():
			found, err := dirFiles(path)
			if err != nil {
				return nil, nil, err
			}
			files = append(files, found...)
		case strings.EqualFold(filepath.Ext(path), ".zip"):
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, nil, fmt.Errorf("read %q: %w", path, err)
			}
			archive, err := bundle.Open(data)
			if err != nil {
				return nil, nil, err
			}
			entries, readWarnings := bundle.Files(archive.Entries())
			files = append(files, entries...)
			warnings = append(warnings, readWarnings...)
		default:
			f, err := source.FromPath(path)
			if err != nil {
				return nil, nil, err
			}
			files = append(files, f)
		}
	}
	return files, warnings, nil
}

func dirFiles(dir string) ([]source.File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read directory %q: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") || !entry.Type().IsRegular() {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	files := make([]source.File, 0, len(names))
	for _, name := range names {
		f, err := source.FromPath(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}
