package engine

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLayouts(t *testing.T) {
	tests := []struct {
		difficulty Difficulty
		pairs      int
		columns    int
		rows       int
	}{
		{Easy, 6, 4, 3},
		{Hard, 12, 6, 4},
	}

	for _, tt := range tests {
		l, ok := Layouts[tt.difficulty]
		if !ok {
			t.Fatalf("Missing layout for %s", tt.difficulty)
		}
		if l.Pairs != tt.pairs || l.Columns != tt.columns || l.Rows != tt.rows {
			t.Errorf("%s: got %+v", tt.difficulty, l)
		}
		if l.Columns*l.Rows != l.Pairs*2 {
			t.Errorf("%s: grid %dx%d does not hold %d cards", tt.difficulty, l.Columns, l.Rows, l.Pairs*2)
		}
	}
}

func TestParseDifficulty(t *testing.T) {
	tests := []struct {
		in      string
		want    Difficulty
		wantErr bool
	}{
		{"easy", Easy, false},
		{"HARD", Hard, false},
		{" Easy ", Easy, false},
		{"", Easy, false},
		{"medium", "", true},
	}

	for _, tt := range tests {
		got, err := ParseDifficulty(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidDifficulty) {
				t.Errorf("ParseDifficulty(%q): expected ErrInvalidDifficulty, got %v", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseDifficulty(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestFormatElapsed(t *testing.T) {
	tests := map[int]string{
		0:    "00:00",
		5:    "00:05",
		65:   "01:05",
		600:  "10:00",
		3599: "59:59",
		-3:   "00:00",
	}
	for in, want := range tests {
		if got := FormatElapsed(in); got != want {
			t.Errorf("FormatElapsed(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestRoundClone(t *testing.T) {
	finished := time.Now()
	r := &Round{
		Cards:      []Card{{ID: "c0", Value: "x"}, {ID: "c1", Value: "x"}},
		Flipping:   []string{"c0"},
		FinishedAt: &finished,
	}
	c := r.Clone()
	c.Cards[0].FaceUp = true
	c.Flipping[0] = "changed"
	*c.FinishedAt = finished.Add(time.Hour)

	if r.Cards[0].FaceUp || r.Flipping[0] != "c0" || !r.FinishedAt.Equal(finished) {
		t.Error("Clone must not share memory with the original")
	}
	if (*Round)(nil).Clone() != nil {
		t.Error("Clone of nil should be nil")
	}
}

func TestRoundJSON(t *testing.T) {
	r := &Round{
		Difficulty: Easy,
		PairCount:  6,
		Cards:      []Card{{ID: "c0", Value: "🍎", FaceUp: true}},
		State:      InProgress,
	}
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	s := string(data)
	for _, want := range []string{`"difficulty":"easy"`, `"state":"in_progress"`, `"face_up":true`, `"pair_count":6`} {
		if !strings.Contains(s, want) {
			t.Errorf("Expected %s in %s", want, s)
		}
	}
	if strings.Contains(s, "started_at") || strings.Contains(s, "finished_at") {
		t.Errorf("Zero timestamps should be omitted: %s", s)
	}
}

func TestBestScoreString(t *testing.T) {
	if got := (BestScore{Difficulty: Easy}).String(); got != "—" {
		t.Errorf("Expected dash for unrecorded score, got %q", got)
	}
	if got := (BestScore{Difficulty: Easy, Moves: 9, Recorded: true}).String(); got != "9 moves" {
		t.Errorf("Expected \"9 moves\", got %q", got)
	}
}
