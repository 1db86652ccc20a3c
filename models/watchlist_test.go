package models

import "testing"

func TestDisplayYear(t *testing.T) {
	tests := []struct {
		name  string
		title string
		year  int
		want  string
	}{
		{"explicit year wins", "The Matrix", 1999, "1999"},
		{"explicit year over title token", "Dune (1984)", 2021, "2021"},
		{"year derived from title", "Movie (1999)", 0, "1999"},
		{"token mid-title", "Heat (1995) Remastered", 0, "1995"},
		{"no year anywhere", "Some Show", 0, ""},
		{"unparenthesized digits ignored", "Blade Runner 2049", 0, ""},
		{"short token ignored", "Se7en (99)", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DisplayYear(tt.title, tt.year); got != tt.want {
				t.Errorf("DisplayYear(%q, %d) = %q, want %q", tt.title, tt.year, got, tt.want)
			}
		})
	}
}
