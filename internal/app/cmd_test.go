package app

import (
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want Command
	}{
		{"empty defaults to serve", []string{}, CommandServe},
		{"serve", []string{"serve"}, CommandServe},
		{"sync", []string{"sync"}, CommandSync},
		{"healthcheck", []string{"healthcheck"}, CommandHealthcheck},
		{"unknown defaults to serve", []string{"unknown"}, CommandServe},
		{"ignores extra args", []string{"sync", "--flag", "value"}, CommandSync},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseCommand(tt.args); got != tt.want {
				t.Errorf("ParseCommand(%v) = %q, want %q", tt.args, got, tt.want)
			}
		})
	}
}
