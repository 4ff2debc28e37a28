// Package prompts holds the LLM prompt templates. Each embedded JSON file maps
// a key to template text with {{.Name}} placeholders.
package prompts

import (
	"embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

//go:embed *.json
var files embed.FS

var (
	mu     sync.Mutex
	loaded = make(map[string]map[string]string)
)

// Get returns the template stored under key in file, e.g. Get("assessment.json", "adviser-role").
func Get(file, key string) (string, error) {
	templates, err := load(file)
	if err != nil {
		return "", err
	}
	tmpl, ok := templates[key]
	if !ok {
		return "", fmt.Errorf("prompt key %q not found in %s", key, file)
	}
	return tmpl, nil
}

// MustGet is Get for templates that ship with the binary; a missing one is a
// build defect, so it panics.
func MustGet(file, key string) string {
	tmpl, err := Get(file, key)
	if err != nil {
		panic(fmt.Sprintf("failed to load prompt: %v", err))
	}
	return tmpl
}

// Format substitutes {{.Key}} placeholders with values from data. Unknown
// placeholders are left in place.
func Format(template string, data map[string]string) string {
	if len(data) == 0 {
		return template
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, "{{."+k+"}}", data[k])
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// List returns the keys defined in file, sorted.
func List(file string) ([]string, error) {
	templates, err := load(file)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(templates))
	for k := range templates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// ClearCache drops parsed files so the next lookup re-reads them.
func ClearCache() {
	mu.Lock()
	defer mu.Unlock()
	loaded = make(map[string]map[string]string)
}

func load(file string) (map[string]string, error) {
	mu.Lock()
	defer mu.Unlock()
	if templates, ok := loaded[file]; ok {
		return templates, nil
	}

	data, err := files.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt file %s: %w", file, err)
	}
	var templates map[string]string
	if err := json.Unmarshal(data, &templates); err != nil {
		return nil, fmt.Errorf("failed to parse prompt file %s: %w", file, err)
	}
	for k, v := range templates {
		if strings.TrimSpace(v) == "" {
			return nil, fmt.Errorf("prompt %q in %s is empty", k, file)
		}
	}

	loaded[file] = templates
	return templates, nil
}
