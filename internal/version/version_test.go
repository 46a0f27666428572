package version

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input      string
		key        string
		prerelease bool
	}{
		{"1.2.3", "1.2.3", false},
		{"1.0", "1", false},
		{"v2.0.0", "2", false},
		{"2.0rc1", "2rc1", true},
		{"2.0.0-beta.2", "2b2", true},
		{"1.0a", "1a0", true},
		{"1.0.dev4", "1.dev4", true},
		{"1.0.post2", "1.post2", false},
		{"1.0-3", "1.post3", false},
		{"1!3.0", "1!3", false},
		{"1.0+Ubuntu-1", "1+ubuntu.1", false},
		{" 3.1 ", "3.1", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			v, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse(%q) failed: %v", tt.input, err)
			}
			if v.Key() != tt.key {
				t.Errorf("Key() = %q, want %q", v.Key(), tt.key)
			}
			if v.IsPrerelease() != tt.prerelease {
				t.Errorf("IsPrerelease() = %v, want %v", v.IsPrerelease(), tt.prerelease)
			}
		})
	}
}

func TestParseInvalid(t *testing.T) {
	for _, input := range []string{"", "abc", "1.0-", "1..0", "latest"} {
		if _, err := Parse(input); !errors.Is(err, ErrInvalid) {
			t.Errorf("Parse(%q) error = %v, want ErrInvalid", input, err)
		}
	}
}

func TestCompareOrdering(t *testing.T) {
	ordered := []string{
		"1.0.dev0",
		"1.0a1",
		"1.0a2.dev1",
		"1.0a2",
		"1.0b1",
		"1.0rc1",
		"1.0",
		"1.0+local",
		"1.0.post1",
		"1.1",
		"2.0",
		"1!0.5",
	}

	for i := 0; i < len(ordered)-1; i++ {
		a, b := MustParse(ordered[i]), MustParse(ordered[i+1])
		if a.Compare(b) >= 0 {
			t.Errorf("expected %s < %s", a, b)
		}
		if b.Compare(a) <= 0 {
			t.Errorf("expected %s > %s", b, a)
		}
	}
}

func TestEqualIgnoresTrailingZeros(t *testing.T) {
	if !MustParse("1.0").Equal(MustParse("1.0.0")) {
		t.Error("1.0 should equal 1.0.0")
	}
	if MustParse("1.0").Equal(MustParse("1.0.1")) {
		t.Error("1.0 should not equal 1.0.1")
	}
}

func TestNextPatch(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"1.2.3", "1.2.4"},
		{"1.2", "1.2.1"},
		{"2.0.0b1", "2.0.0"},
		{"1.5.dev3", "1.5.0"},
		{"1.2.3.post1", "1.2.4"},
	}

	for _, tt := range tests {
		got := MustParse(tt.input).NextPatch()
		if got.String() != tt.want {
			t.Errorf("NextPatch(%s) = %s, want %s", tt.input, got, tt.want)
		}
		if !got.IsStable() {
			t.Errorf("NextPatch(%s) should be stable", tt.input)
		}
	}
}

func TestNextBreaking(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"1.2.3", "2.0.0"},
		{"0.2.3", "0.3.0"},
		{"0.0.3", "0.0.4"},
		{"0", "1.0.0"},
		{"0.0", "0.1.0"},
	}

	for _, tt := range tests {
		got := MustParse(tt.input).NextBreaking()
		if got.String() != tt.want {
			t.Errorf("NextBreaking(%s) = %s, want %s", tt.input, got, tt.want)
		}
	}
}

func TestTextRoundTrip(t *testing.T) {
	v := MustParse("1.4.0rc2")
	data, err := v.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText failed: %v", err)
	}

	var back Version
	if err := back.UnmarshalText(data); err != nil {
		t.Fatalf("UnmarshalText failed: %v", err)
	}
	if !back.Equal(v) || back.String() != "1.4.0rc2" {
		t.Errorf("round trip = %s, want %s", back, v)
	}
}
