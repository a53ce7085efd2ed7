package burnin

import "testing"

func TestParseRate(t *testing.T) {
	tests := []struct {
		input string
		want  int64
	}{
		{"100m", 104857600},
		{"10k", 10240},
		{"1g", 1 << 30},
		{"4096", 4096},
		{"0", 0},
		{"100M", 104857600}, // suffix is case-insensitive
		{" 10k ", 10240},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseRate(tt.input)
			if err != nil {
				t.Fatalf("ParseRate(%q) error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseRate(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseRateUnparseable(t *testing.T) {
	for _, input := range []string{"", "fast", "10x", "k", "-5m", "1.5m"} {
		t.Run(input, func(t *testing.T) {
			got, err := ParseRate(input)
			if err == nil {
				t.Fatalf("ParseRate(%q) expected error", input)
			}
			if got != 0 {
				t.Errorf("ParseRate(%q) = %d, want 0 on error", input, got)
			}
		})
	}
}
