package persona

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Persona
		wantErr  bool
	}{
		{
			name:     "an empty document returns the default persona",
			input:    "",
			expected: Default(),
		},
		{
			name:  "fields in the document override the defaults",
			input: "name: Sam\nsystem_prompt: You are Sam.\ntemperature: 0.5\n",
			expected: Persona{
				Name:         "Sam",
				SystemPrompt: "You are Sam.",
				Temperature:  0.5,
			},
		},
		{
			name:  "missing fields keep their defaults",
			input: "system_prompt: Be brief.\n",
			expected: Persona{
				Name:         "Alex",
				SystemPrompt: "Be brief.",
			},
		},
		{
			name:    "unknown fields are rejected",
			input:   "voice: loud\n",
			wantErr: true,
		},
		{
			name:    "an empty system prompt is rejected",
			input:   "system_prompt: \"\"\n",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actual, err := Decode(strings.NewReader(tt.input))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.expected, actual); diff != "" {
				t.Error(diff)
			}
		})
	}
}

func TestLoadWithoutFilenameReturnsDefault(t *testing.T) {
	p, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(p.SystemPrompt, "You are a knowledgeable financial assistant.") {
		t.Errorf("unexpected system prompt: %q", p.SystemPrompt)
	}
}
