package credentials

import (
	"regexp"
	"testing"
)

var codePattern = regexp.MustCompile(`^[A-Z]+-[A-Z]+-[0-9]{2}$`)

func TestGenerateFamilyCode(t *testing.T) {
	for i := 0; i < 100; i++ {
		code, err := GenerateFamilyCode()
		if err != nil {
			t.Fatalf("GenerateFamilyCode() error = %v", err)
		}
		if !codePattern.MatchString(code) {
			t.Errorf("GenerateFamilyCode() = %q, want ADJECTIVE-NOUN-NN", code)
		}
	}
}

func TestNormalizeFamilyCode(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"brave-tiger-07", "BRAVE-TIGER-07"},
		{"  Happy-Fox-10 ", "HAPPY-FOX-10"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := NormalizeFamilyCode(tt.in); got != tt.want {
				t.Errorf("NormalizeFamilyCode(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
