package gcp

import "testing"

func TestNormalizeSecretPath(t *testing.T) {
	c := &SecretManagerClient{projectID: "my-project"}

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "full path with version",
			input:    "projects/p/secrets/openai-key/versions/3",
			expected: "projects/p/secrets/openai-key/versions/3",
		},
		{
			name:     "full path without version",
			input:    "projects/p/secrets/openai-key",
			expected: "projects/p/secrets/openai-key/versions/latest",
		},
		{
			name:     "bare secret name",
			input:    "openai-key",
			expected: "projects/my-project/secrets/openai-key/versions/latest",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.normalizeSecretPath(tt.input); got != tt.expected {
				t.Errorf("normalizeSecretPath(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
