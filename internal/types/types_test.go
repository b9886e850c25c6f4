package types

import "testing"

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Strategy
		wantErr bool
	}{
		{"parallel upper", "PARALLEL", StrategyParallel, false},
		{"sequential lower", "sequential", StrategySequential, false},
		{"disabled mixed", "Disabled", StrategyDisabled, false},
		{"surrounding space", " PARALLEL ", StrategyParallel, false},
		{"empty", "", "", true},
		{"unknown", "TURBO", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStrategy(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseStrategy(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseStrategy(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestStrategyValidate(t *testing.T) {
	for _, s := range AllStrategies() {
		if err := s.Validate(); err != nil {
			t.Errorf("Validate(%s) = %v, want nil", s, err)
		}
	}

	if err := Strategy("MAYBE").Validate(); err == nil {
		t.Error("Validate(MAYBE) = nil, want error")
	}
}

func TestStrategyIsDisabled(t *testing.T) {
	if !StrategyDisabled.IsDisabled() {
		t.Error("StrategyDisabled.IsDisabled() = false, want true")
	}
	if StrategyParallel.IsDisabled() {
		t.Error("StrategyParallel.IsDisabled() = true, want false")
	}
}
