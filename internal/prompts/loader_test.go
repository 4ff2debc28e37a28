package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet(t *testing.T) {
	ClearCache()

	tests := []struct {
		name    string
		file    string
		key     string
		want    string
		wantErr string
	}{
		{name: "adviser role", file: "assessment.json", key: "adviser-role", want: "UK immigration adviser"},
		{name: "estimate line", file: "assessment.json", key: "heuristic-estimate", want: "{{.Score}}/100"},
		{name: "unknown file", file: "nonexistent.json", key: "adviser-role", wantErr: "failed to read prompt file"},
		{name: "unknown key", file: "assessment.json", key: "nonexistent-key", wantErr: "not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Get(tt.file, tt.key)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, got, tt.want)
		})
	}
}

func TestMustGet(t *testing.T) {
	ClearCache()

	assert.Panics(t, func() { MustGet("assessment.json", "missing") })
	assert.NotPanics(t, func() {
		assert.NotEmpty(t, MustGet("assessment.json", "applicant-profile"))
	})
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name     string
		template string
		data     map[string]string
		want     string
	}{
		{
			name:     "all placeholders",
			template: "Route {{.Route}} scored {{.Score}}/100",
			data:     map[string]string{"Route": "skilled-worker", "Score": "72"},
			want:     "Route skilled-worker scored 72/100",
		},
		{
			name:     "repeated placeholder",
			template: "{{.Body}} endorses; ask {{.Body}} first",
			data:     map[string]string{"Body": "tech-nation"},
			want:     "tech-nation endorses; ask tech-nation first",
		},
		{
			name:     "unknown placeholder kept",
			template: "Profile: {{.Profile}}",
			data:     map[string]string{"Score": "10"},
			want:     "Profile: {{.Profile}}",
		},
		{
			name:     "values are not re-expanded",
			template: "{{.A}} {{.B}}",
			data:     map[string]string{"A": "{{.B}}", "B": "x"},
			want:     "{{.B}} x",
		},
		{name: "no data", template: "Heuristic estimate: {{.Score}}/100", want: "Heuristic estimate: {{.Score}}/100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.template, tt.data))
		})
	}
}

func TestList(t *testing.T) {
	ClearCache()

	keys, err := List("assessment.json")
	require.NoError(t, err)
	assert.Equal(t, []string{"adviser-role", "applicant-profile", "heuristic-estimate"}, keys)
}

func TestAssessmentTemplates(t *testing.T) {
	ClearCache()

	got := Format(MustGet("assessment.json", "heuristic-estimate"), map[string]string{"Score": "64"})
	assert.Equal(t, "Heuristic estimate: 64/100", got)
}
