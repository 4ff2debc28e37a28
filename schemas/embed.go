// Package schemas embeds the JSON Schema documents shipped with visa-navigator.
package schemas

import "embed"

// Names of the embedded schema documents.
const (
	VisaCatalog      = "visa_catalog.schema.json"
	AssessmentResult = "assessment_result.schema.json"
)

//go:embed *.schema.json
var files embed.FS

// Get returns the content of an embedded schema document.
func Get(name string) (string, error) {
	data, err := files.ReadFile(name)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// MustGet returns the content of an embedded schema, panicking if it is missing.
func MustGet(name string) string {
	s, err := Get(name)
	if err != nil {
		panic(err)
	}
	return s
}
