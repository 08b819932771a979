package game

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestGameStatus(t *testing.T) {
	end := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	g := Game{StartTime: end.Add(-24 * time.Hour), EndTime: end}

	tests := []struct {
		now  time.Time
		want Status
	}{
		{now: end.Add(-48 * time.Hour), want: StatusOpen},
		{now: end.Add(-time.Second), want: StatusOpen},
		{now: end, want: StatusClosed},
		{now: end.Add(time.Hour), want: StatusClosed},
	}
	for _, tc := range tests {
		if got := g.Status(tc.now); got != tc.want {
			t.Fatalf("Status(%s) = %s, want %s", tc.now, got, tc.want)
		}
	}
}

func TestParticipantCloneIsDeep(t *testing.T) {
	p := Participant{Holdings: map[string]int64{"AAPL": 1}}
	c := p.Clone()
	c.Holdings["AAPL"] = 9
	if p.Holdings["AAPL"] != 1 {
		t.Fatalf("clone shares holdings map")
	}
	if (Participant{}).Clone().Holdings == nil {
		t.Fatalf("clone of empty participant should have a usable map")
	}
}

func TestValidateGameID(t *testing.T) {
	if err := ValidateGameID(uuid.NewString()); err != nil {
		t.Fatalf("expected uuid to be valid: %v", err)
	}
	for _, id := range []string{"", "507f1f77bcf86cd799439011", "../etc"} {
		if err := ValidateGameID(id); err != ErrGameNotFound {
			t.Fatalf("ValidateGameID(%q) = %v", id, err)
		}
	}
}

func TestSymbolsSorted(t *testing.T) {
	p := Participant{Holdings: map[string]int64{"NVDA": 1, "AAPL": 2, "KO": 3}}
	got := p.Symbols()
	want := []string{"AAPL", "KO", "NVDA"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Symbols() = %v", got)
		}
	}
}
