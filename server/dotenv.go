// ABOUTME: Loads KICKSIGHT_* defaults from a .env file before flag and env parsing run.
// ABOUTME: Real environment variables always win; the file only fills in missing keys.
package server

import (
	"bufio"
	"os"
	"strings"
)

// LoadDotEnv applies KEY=VALUE pairs from path to the process environment,
// skipping any key the environment already defines. A missing file is not an
// error, so the loader can run unconditionally at startup.
//
// The format is deliberately small: one pair per line, # starts a comment,
// blank lines are ignored, and a value may be wrapped in single or double
// quotes.
func LoadDotEnv(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, ok := parseEnvLine(scanner.Text())
		if !ok {
			continue
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// parseEnvLine splits one .env line into a key/value pair. Comments, blank
// lines, and lines without '=' report ok=false.
func parseEnvLine(line string) (key, value string, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}

	idx := strings.IndexByte(line, '=')
	if idx < 0 {
		return "", "", false
	}
	key = strings.TrimSpace(line[:idx])
	if key == "" {
		return "", "", false
	}

	value = strings.TrimSpace(line[idx+1:])
	if len(value) >= 2 {
		first, last := value[0], value[len(value)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			value = value[1 : len(value)-1]
		}
	}
	return key, value, true
}
