package domain

import (
	"fmt"
	"strings"
	"time"
)

type QueueKind string

const (
	QueueSingles QueueKind = "singles"
	QueueDoubles QueueKind = "doubles"
	QueueFunnies QueueKind = "funnies"
	QueueRanked  QueueKind = "ranked"
)

var QueueKinds = []QueueKind{QueueSingles, QueueDoubles, QueueFunnies, QueueRanked}

func ParseQueueKind(s string) (QueueKind, error) {
	q := QueueKind(strings.ToLower(strings.TrimSpace(s)))
	if !q.Valid() {
		return "", fmt.Errorf("%w: unknown queue %q", ErrInvalidPing, s)
	}
	return q, nil
}

func (q QueueKind) Valid() bool {
	switch q {
	case QueueSingles, QueueDoubles, QueueFunnies, QueueRanked:
		return true
	}
	return false
}

type PingEntry struct {
	ParticipantID string    `json:"participant_id"`
	Queue         QueueKind `json:"queue"`
	LocationID    string    `json:"location_id"`
	Tier          *Tier     `json:"tier,omitempty"` // ranked only, snapshot at ping time
	IssuedAt      time.Time `json:"issued_at"`
	Version       string    `json:"version"` // nanoid, compared by scheduled expiry
}

type ActivePing struct {
	PingEntry
	Age time.Duration `json:"-"`
}

func (p ActivePing) MinutesAgo() int {
	return int(p.Age / time.Minute)
}

type ActivePingList struct {
	Queue   QueueKind    `json:"queue"`
	Entries []ActivePing `json:"entries,omitempty"`
	None    bool         `json:"none"`
}

type Outcome string

const (
	OutcomeWin  Outcome = "W"
	OutcomeLoss Outcome = "L"
)

type RatingRecord struct {
	ParticipantID string    `json:"participant_id"`
	Rating        int       `json:"rating"`
	Wins          int       `json:"wins"`
	Losses        int       `json:"losses"`
	History       []Outcome `json:"history"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Recent returns up to n of the latest outcomes, oldest first.
func (r RatingRecord) Recent(n int) []Outcome {
	if n <= 0 || len(r.History) == 0 {
		return []Outcome{}
	}
	if n > len(r.History) {
		n = len(r.History)
	}
	out := make([]Outcome, n)
	copy(out, r.History[len(r.History)-n:])
	return out
}

type MatchReport struct {
	WinnerID string `json:"winner_id"`
	LoserID  string `json:"loser_id"`
}

type TierChange struct {
	Before  Tier `json:"before"`
	After   Tier `json:"after"`
	Changed bool `json:"changed"`
}

type MatchResult struct {
	WinnerID     string     `json:"winner_id"`
	LoserID      string     `json:"loser_id"`
	WinnerRating int        `json:"winner_rating"`
	LoserRating  int        `json:"loser_rating"`
	WinnerDelta  int        `json:"winner_delta"`
	LoserDelta   int        `json:"loser_delta"`
	WinnerTier   TierChange `json:"winner_tier"`
	LoserTier    TierChange `json:"loser_tier"`
}

type LeaderboardEntry struct {
	Position      int    `json:"position"`
	ParticipantID string `json:"participant_id"`
	Rating        int    `json:"rating"`
	Wins          int    `json:"wins"`
	Losses        int    `json:"losses"`
}
