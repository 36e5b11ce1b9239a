package mains

import "testing"

func TestForTimezone(t *testing.T) {
	tests := []struct {
		timezone    string
		want        int
		wantCountry bool
	}{
		{"Europe/London", 50, true},
		{"Europe/Berlin", 50, true},
		{"Australia/Sydney", 50, true},
		{"Asia/Tokyo", 50, true}, // split grid, Tokyo side
		{"America/New_York", 60, true},
		{"America/Toronto", 60, true},
		{"America/Sao_Paulo", 60, true},
		{"Asia/Seoul", 60, true},
		{"Asia/Manila", 60, true},

		{"UTC", 50, false},
		{"Etc/GMT+5", 50, false},
	}

	for _, tt := range tests {
		t.Run(tt.timezone, func(t *testing.T) {
			got := ForTimezone(tt.timezone)
			if got.Frequency != tt.want {
				t.Errorf("ForTimezone(%q).Frequency = %d, want %d", tt.timezone, got.Frequency, tt.want)
			}
			if (got.Country != "") != tt.wantCountry {
				t.Errorf("ForTimezone(%q).Country = %q, want country: %v", tt.timezone, got.Country, tt.wantCountry)
			}
			if got.Timezone != tt.timezone {
				t.Errorf("ForTimezone(%q).Timezone = %q", tt.timezone, got.Timezone)
			}
		})
	}
}

func TestDetectionSource(t *testing.T) {
	tests := []struct {
		name string
		d    Detection
		want string
	}{
		{"country", Detection{Frequency: 60, Timezone: "America/Chicago", Country: "United States"}, "America/Chicago (United States)"},
		{"no country", Detection{Frequency: 50, Timezone: "UTC"}, "UTC (no country, default)"},
		{"unknown", Detection{Frequency: 50}, "default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.d.Source(); got != tt.want {
				t.Errorf("Source() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDetect(t *testing.T) {
	// Only the range is checkable on an arbitrary host
	d := Detect()
	if d.Frequency != 50 && d.Frequency != 60 {
		t.Errorf("Detect().Frequency = %d, want 50 or 60", d.Frequency)
	}
}
