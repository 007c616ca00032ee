package phone

import (
	"errors"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		hint string
		want string
	}{
		{name: "canonical", raw: "+628123456789", hint: "ID", want: "+628123456789"},
		{name: "local_zero", raw: "08123456789", hint: "ID", want: "+628123456789"},
		{name: "country_code_without_plus", raw: "628123456789", hint: "", want: "+628123456789"},
		{name: "formatted", raw: "+62 812-3456-789", hint: "ID", want: "+628123456789"},
		{name: "us_with_hint", raw: "(650) 253-0000", hint: "US", want: "+16502530000"},
		{name: "australia_international", raw: "+61 412 345 678", hint: "ID", want: "+61412345678"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.raw, tt.hint)
			if err != nil {
				t.Fatalf("Normalize(%q) error = %v", tt.raw, err)
			}
			if got != tt.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	inputs := []string{"08123456789", "628123456789", "+62 812 3456 789", "+16502530000"}

	for _, in := range inputs {
		once, err := Normalize(in, "ID")
		if err != nil {
			t.Fatalf("Normalize(%q) error = %v", in, err)
		}
		twice, err := Normalize(once, "ID")
		if err != nil {
			t.Fatalf("Normalize(%q) error = %v", once, err)
		}
		if once != twice {
			t.Fatalf("Normalize not idempotent: %q -> %q -> %q", in, once, twice)
		}
	}
}

func TestNormalizeRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "   ", "abc", "12", "+0000"} {
		if _, err := Normalize(raw, "ID"); !errors.Is(err, ErrInvalidPhone) {
			t.Fatalf("Normalize(%q) error = %v, want ErrInvalidPhone", raw, err)
		}
	}
}

func TestDetectCountry(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"+628123456789", "ID"},
		{"+16502530000", "US"},
		{"+61412345678", "AU"},
		{"not a number", "ID"},
	}
	for _, tt := range tests {
		if got := DetectCountry(tt.in); got != tt.want {
			t.Fatalf("DetectCountry(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
