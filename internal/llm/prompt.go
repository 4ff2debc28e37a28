package llm

import (
	"fmt"
	"strings"
)

// OutputSchema describes the JSON object a prompt asks the model to return.
type OutputSchema struct {
	Name        string
	Description string // task preamble
	Fields      []SchemaField
	Rules       []string // appended after the schema
}

// SchemaField is one key of the expected JSON object. An empty Type means string.
type SchemaField struct {
	Name        string
	Type        string
	Description string
	Required    bool
}

func (f SchemaField) line() string {
	typ := f.Type
	if typ == "" {
		typ = "string"
	}
	line := fmt.Sprintf("  %q: %s", f.Name, typ)
	if f.Required {
		line += " (required)"
	}
	if f.Description != "" {
		line += " // " + f.Description
	}
	return line
}

const bareJSONRule = "Return ONLY the JSON object, no markdown, no explanation, no code blocks."

// BuildStructuredPrompt renders the schema, its rules and the quoted input.
func BuildStructuredPrompt(schema OutputSchema, inputText string) string {
	lines := make([]string, len(schema.Fields))
	for i, f := range schema.Fields {
		lines[i] = f.line()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n\nReturn ONLY valid JSON matching this exact structure:\n{\n%s\n}\n\nIMPORTANT:\n",
		schema.Description, strings.Join(lines, ",\n"))
	for _, rule := range append(schema.Rules, bareJSONRule) {
		fmt.Fprintf(&sb, "- %s\n", rule)
	}
	fmt.Fprintf(&sb, "\nInput:\n\"\"\"\n%s\n\"\"\"\n", inputText)
	return sb.String()
}
