package polygon

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// LoadTickersFromFile reads a ticker list.
// Supported formats:
//   - .txt  : one ticker per line, '#' lines are treated as comments
//   - .json : JSON array of strings
//
// Tickers are upper-cased; blanks and duplicates are removed.
func LoadTickersFromFile(path string) ([]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ticker file %s: %w", path, err)
	}

	var tickers []string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(content, &tickers); err != nil {
			return nil, fmt.Errorf("parse JSON %s: %w", path, err)
		}
	case ".txt":
		tickers = parseTickersFromText(string(content))
	default:
		return nil, fmt.Errorf("unsupported ticker file extension %q (use .txt or .json)", filepath.Ext(path))
	}

	seen := make(map[string]bool)
	var unique []string
	for _, t := range tickers {
		t = strings.TrimSpace(strings.ToUpper(t))
		if t != "" && !seen[t] {
			seen[t] = true
			unique = append(unique, t)
		}
	}

	slog.Info("loaded tickers from file", "count", len(unique), "path", path)
	return unique, nil
}

func parseTickersFromText(s string) []string {
	var tickers []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			tickers = append(tickers, line)
		}
	}
	return tickers
}
