package logger

import "testing"

func TestGetZapLevel(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"debug", "debug"},
		{"INFO", "info"},
		{"Warn", "warn"},
		{"error", "error"},
		{"fatal", "fatal"},
		{"nonsense", "info"},
		{"", "info"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := getZapLevel(tt.input).String(); got != tt.want {
				t.Errorf("getZapLevel(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestWithFieldsReturnsNewLogger(t *testing.T) {
	base := Discard()
	derived := base.WithFields(Fields{"region": "europe"})

	if derived == nil {
		t.Fatal("WithFields returned nil")
	}
	// The derived logger must be usable without affecting the base one.
	derived.Infof("cycle %d", 1)
	base.Infof("cycle %d", 2)
}
