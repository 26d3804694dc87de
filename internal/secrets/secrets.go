// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys and credentials from a directory of plain-text files.
// Each file in the directory represents one secret: the filename is the key name and the
// file contents (trimmed) are the value.
//
// Known key files and the environment variables they stand in for are listed in EnvNames.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// EnvNames maps secret file names to the environment variables the rest of
// the program reads.
var EnvNames = map[string]string{
	"openai-api-key":    "OPENAI_API_KEY",
	"anthropic-api-key": "ANTHROPIC_API_KEY",
	"gemini-api-key":    "GEMINI_API_KEY",
	"ncbi-api-key":      "NCBI_API_KEY",
	"ncbi-email":        "NCBI_EMAIL",
}

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files produce a warning on stderr but do not abort.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not read secret %s: %v\n", name, err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// ApplyEnv exports known secrets as environment variables. Variables that
// are already set win over files. It returns the sorted variable names set.
func ApplyEnv(secrets map[string]string) ([]string, error) {
	var applied []string
	for file, value := range secrets {
		env, ok := EnvNames[file]
		if !ok {
			continue
		}
		if _, set := os.LookupEnv(env); set {
			continue
		}
		if err := os.Setenv(env, value); err != nil {
			return applied, fmt.Errorf("setting %s: %w", env, err)
		}
		applied = append(applied, env)
	}
	sort.Strings(applied)
	return applied, nil
}
