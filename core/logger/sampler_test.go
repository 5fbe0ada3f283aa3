package logger

import "testing"

func TestParseRatioSpec(t *testing.T) {
	tests := []struct {
		in       string
		num, den int
	}{
		{"", 0, 0},
		{"off", 0, 0},
		{"1/20", 1, 20},
		{" 3 / 4 ", 3, 4},
		{"50", 1, 50},
		{"25%", 25, 100},
		{"250%", 100, 100},
		{"-3", 0, 0},
		{"x/y", 0, 0},
	}
	for _, tt := range tests {
		num, den := parseRatioSpec(tt.in)
		if num != tt.num || den != tt.den {
			t.Fatalf("parseRatioSpec(%q) = %d/%d, want %d/%d", tt.in, num, den, tt.num, tt.den)
		}
	}
}

func TestRatioSamplerWindow(t *testing.T) {
	s := newRatioSampler(2, 5)
	var got []bool
	for i := 0; i < 10; i++ {
		got = append(got, s.Allow())
	}
	want := []bool{true, true, false, false, false, true, true, false, false, false}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Allow sequence = %v, want %v", got, want)
		}
	}

	s.Set(0, 0)
	for i := 0; i < 3; i++ {
		if !s.Allow() {
			t.Fatal("disabled sampler must let everything through")
		}
	}
	s.Set(9, 3)
	if !s.Allow() || !s.Allow() || !s.Allow() {
		t.Fatal("num is capped at den")
	}
}
