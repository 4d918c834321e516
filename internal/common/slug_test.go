package common

import "testing"

func TestSlugify(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple headline", "Beachfront Villas", "beachfront-villas"},
		{"punctuation collapsed", "Buying a Villa: The Complete Guide!", "buying-a-villa-the-complete-guide"},
		{"spanish accents", "Málaga y Cádiz: Dónde Comprar", "malaga-y-cadiz-donde-comprar"},
		{"nordic characters", "Køb Bolig på Costa del Sol", "kob-bolig-pa-costa-del-sol"},
		{"german sharp s", "Straße zum Meer", "strasse-zum-meer"},
		{"leading and trailing noise", "  --Top 10 Areas--  ", "top-10-areas"},
		{"multiple spaces", "costa   del   sol", "costa-del-sol"},
		{"empty input", "", ""},
		{"only punctuation", "!?&", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Slugify(tt.input); got != tt.expected {
				t.Errorf("Slugify(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSlugifyDeterministic(t *testing.T) {
	input := "Beachfront Villa Costa del Sol"
	first := Slugify(input)
	for i := 0; i < 5; i++ {
		if got := Slugify(input); got != first {
			t.Fatalf("Slugify is not deterministic: %q != %q", got, first)
		}
	}
}
