package memory

import (
	"testing"
	"time"
)

func unixUTC(year int, month time.Month) int64 {
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).Unix()
}

func TestParseDateRange(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantStart int64
		wantEnd   int64
		wantOK    bool
	}{
		{
			name:      "month with year",
			text:      "what did we talk about in January 2025",
			wantStart: unixUTC(2025, time.January),
			wantEnd:   unixUTC(2025, time.February),
			wantOK:    true,
		},
		{
			name:      "month of year",
			text:      "back in march of 2024",
			wantStart: unixUTC(2024, time.March),
			wantEnd:   unixUTC(2024, time.April),
			wantOK:    true,
		},
		{
			name:      "bare month assumes 2025",
			text:      "remember that poem from may?",
			wantStart: unixUTC(2025, time.May),
			wantEnd:   unixUTC(2025, time.June),
			wantOK:    true,
		},
		{
			name:      "abbreviated month",
			text:      "the dec conversation",
			wantStart: unixUTC(2025, time.December),
			wantEnd:   unixUTC(2026, time.January),
			wantOK:    true,
		},
		{
			name:   "no month mentioned",
			text:   "tell me about the ocean",
			wantOK: false,
		},
		{
			name:   "empty text",
			text:   "",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, ok := ParseDateRange(tt.text)
			if ok != tt.wantOK {
				t.Fatalf("ParseDateRange(%q) ok = %v, want %v", tt.text, ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if start != tt.wantStart || end != tt.wantEnd {
				t.Errorf("ParseDateRange(%q) = (%d, %d), want (%d, %d)",
					tt.text, start, end, tt.wantStart, tt.wantEnd)
			}
		})
	}
}
