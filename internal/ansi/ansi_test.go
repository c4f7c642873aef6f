package ansi

import "testing"

func TestStyle(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		codes []string
		want  string
	}{
		{"plain", nil, "x"},
		{"bold red", []string{Bold, Red}, Bold + Red + "x" + Reset},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Style("x", tt.codes...); got != tt.want {
				t.Errorf("Style = %q, want %q", got, tt.want)
			}
		})
	}
}
