package domain

import (
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Percentage is a share of the vote rounded to two decimal places. It is
// encoded as a fixed two-decimal string, e.g. "33.33".
type Percentage float64

func NewPercentage(count, total int64) Percentage {
	if total <= 0 {
		return 0
	}
	return Percentage(math.Round(float64(count)/float64(total)*10000) / 100)
}

func (p Percentage) String() string {
	return strconv.FormatFloat(float64(p), 'f', 2, 64)
}

func (p Percentage) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(p.String())), nil
}

func (p *Percentage) UnmarshalJSON(data []byte) error {
	s, err := strconv.Unquote(string(data))
	if err != nil {
		s = string(data)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*p = Percentage(v)
	return nil
}

type CandidateResult struct {
	CandidateID   uuid.UUID  `json:"candidate_id"`
	Name          string     `json:"name"`
	Party         string     `json:"party,omitempty"`
	VoteCount     int64      `json:"vote_count"`
	Percentage    Percentage `json:"percentage"`
	LastUpdatedAt *time.Time `json:"last_updated_at,omitempty"`
}

type ResultSet struct {
	ElectionID   uuid.UUID         `json:"election_id"`
	ElectionName string            `json:"election_name"`
	Status       ElectionStatus    `json:"status"`
	Level        Level             `json:"level"`
	LocationID   string            `json:"location_id"`
	TotalVotes   int64             `json:"total_votes"`
	Candidates   []CandidateResult `json:"candidates"`
}
