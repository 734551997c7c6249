package patient

import (
	"testing"
	"time"
)

func TestAccepts(t *testing.T) {
	// 2099-01-05 is a Monday.
	monday := func(h, m int) time.Time { return time.Date(2099, 1, 5, h, m, 0, 0, time.UTC) }

	doc := &Profile{Availability: []AvailabilityWindow{
		{Weekday: time.Monday, FromMinute: 9 * 60, ToMinute: 12 * 60},
		{Weekday: time.Wednesday, FromMinute: 14 * 60, ToMinute: 18 * 60},
	}}

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"start of window", monday(9, 0), true},
		{"inside window", monday(11, 59), true},
		{"end is exclusive", monday(12, 0), false},
		{"before window", monday(8, 59), false},
		{"other weekday", monday(10, 0).AddDate(0, 0, 1), false},
		{"second window", monday(15, 30).AddDate(0, 0, 2), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := doc.Accepts(tt.at); got != tt.want {
				t.Errorf("Accepts(%s) = %v, want %v", tt.at, got, tt.want)
			}
		})
	}

	if !(&Profile{}).Accepts(monday(3, 0)) {
		t.Error("a doctor without windows should accept any time")
	}
}

func TestAvailabilityWindow_Validate(t *testing.T) {
	tests := []struct {
		name    string
		w       AvailabilityWindow
		wantErr bool
	}{
		{"valid", AvailabilityWindow{Weekday: time.Friday, FromMinute: 0, ToMinute: 1440}, false},
		{"bad weekday", AvailabilityWindow{Weekday: 7, FromMinute: 0, ToMinute: 60}, true},
		{"negative start", AvailabilityWindow{Weekday: 1, FromMinute: -1, ToMinute: 60}, true},
		{"past midnight", AvailabilityWindow{Weekday: 1, FromMinute: 0, ToMinute: 1441}, true},
		{"empty", AvailabilityWindow{Weekday: 1, FromMinute: 60, ToMinute: 60}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.w.validate(); (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
