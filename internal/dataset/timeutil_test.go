package dataset

import (
	"errors"
	"testing"
	"time"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    Clock
		wantErr bool
	}{
		{"18:00:00", Clock(18 * time.Hour), false},
		{"06:30:15", Clock(6*time.Hour + 30*time.Minute + 15*time.Second), false},
		{"a", 0, true},
		{"15-25-32", 0, true},
		{"15:68:32", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClock(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseClock(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrValue) {
				t.Errorf("ParseClock(%q) error %v is not ErrValue", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseClock(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestClockString(t *testing.T) {
	c, err := ParseClock("07:05:09")
	if err != nil {
		t.Fatal(err)
	}
	if c.String() != "07:05:09" {
		t.Errorf("String() = %s", c)
	}
}

func TestRoundMinutes(t *testing.T) {
	in := time.Date(2000, 1, 12, 18, 0, 50, 0, time.UTC)

	up, ok := RoundMinutes(in, RoundUp)
	if !ok || !up.Equal(time.Date(2000, 1, 12, 18, 1, 0, 0, time.UTC)) {
		t.Errorf("RoundMinutes up = %v, %v", up, ok)
	}

	down, ok := RoundMinutes(in, RoundDown)
	if !ok || !down.Equal(time.Date(2000, 1, 12, 18, 0, 0, 0, time.UTC)) {
		t.Errorf("RoundMinutes down = %v, %v", down, ok)
	}

	exact := time.Date(2000, 1, 12, 18, 0, 0, 0, time.UTC)
	if got, _ := RoundMinutes(exact, RoundUp); !got.Equal(exact) {
		t.Errorf("RoundMinutes up on a boundary moved the time to %v", got)
	}

	if _, ok := RoundMinutes(in, "gg"); ok {
		t.Error("RoundMinutes accepted an unknown direction")
	}
}

func TestFrequencySeconds(t *testing.T) {
	if got := FrequencySeconds(60 * time.Minute); got != 3600 {
		t.Errorf("FrequencySeconds(1h) = %d", got)
	}
}

func TestSynthesizePhaseAcrossMidnight(t *testing.T) {
	start, _ := ParseClock("18:00:00")
	end, _ := ParseClock("06:00:00")
	rows := []Observation{
		{Time: time.Date(2024, 1, 1, 17, 59, 0, 0, time.UTC)},
		{Time: time.Date(2024, 1, 1, 18, 0, 0, 0, time.UTC)},
		{Time: time.Date(2024, 1, 2, 3, 0, 0, 0, time.UTC)},
		{Time: time.Date(2024, 1, 2, 6, 0, 0, 0, time.UTC)},
	}
	synthesizePhase(rows, start, end)

	want := []int{Light, Dark, Dark, Light}
	for i, row := range rows {
		if row.Phase != want[i] {
			t.Errorf("row %d phase = %d, want %d", i, row.Phase, want[i])
		}
	}
}
