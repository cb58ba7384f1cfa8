package domain

import (
	"time"

	"github.com/google/uuid"
)

type Level string

const (
	LevelPollingUnit Level = "POLLING_UNIT"
	LevelWard        Level = "WARD"
	LevelLGA         Level = "LGA"
	LevelState       Level = "STATE"
	LevelNational    Level = "NATIONAL"
)

// NationalLocationID is the location of every NATIONAL counter.
const NationalLocationID = "NIGERIA"

// Levels lists the hierarchy from the narrowest scope to the widest.
var Levels = []Level{LevelPollingUnit, LevelWard, LevelLGA, LevelState, LevelNational}

func ParseLevel(s string) (Level, error) {
	for _, l := range Levels {
		if string(l) == s {
			return l, nil
		}
	}
	return "", ErrInvalidLevel
}

type AggregateKey struct {
	Level       Level
	LocationID  string
	ElectionID  uuid.UUID
	CandidateID uuid.UUID
}

type AggregateCounter struct {
	AggregateKey
	VoteCount     int64
	LastUpdatedAt time.Time
}

// TallyIncrement adds By to the counter at Key on behalf of BallotID.
// Applying the same (BallotID, Key.Level) twice counts once.
type TallyIncrement struct {
	BallotID uuid.UUID
	Key      AggregateKey
	By       int64
}

// TallyIncrements derives the counter increments a ballot contributes,
// one per geographic level.
func TallyIncrements(b *Ballot) []TallyIncrement {
	locations := map[Level]string{
		LevelPollingUnit: b.Assignment.PollingUnitID,
		LevelWard:        b.Assignment.WardID,
		LevelLGA:         b.Assignment.LGAID,
		LevelState:       b.Assignment.StateID,
		LevelNational:    NationalLocationID,
	}

	increments := make([]TallyIncrement, 0, len(Levels))
	for _, level := range Levels {
		increments = append(increments, TallyIncrement{
			BallotID: b.ID,
			Key: AggregateKey{
				Level:       level,
				LocationID:  locations[level],
				ElectionID:  b.ElectionID,
				CandidateID: b.CandidateID,
			},
			By: 1,
		})
	}
	return increments
}
