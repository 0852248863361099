package domain

import "testing"

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Shoes", "shoes"},
		{"Men's Shoes", "mens-shoes"},
		{"  Home & Garden  ", "home-garden"},
		{"Électronique Café", "electronique-cafe"},
		{"TV--Audio__Video", "tv-audio-video"},
		{"4K Screens", "4k-screens"},
		{"", ""},
		{"!!!", ""},
	}
	for _, tt := range tests {
		if got := Slugify(tt.in); got != tt.want {
			t.Errorf("Slugify(%q) = %q; want %q", tt.in, got, tt.want)
		}
	}
}
