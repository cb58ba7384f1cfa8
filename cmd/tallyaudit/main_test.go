package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vncsmyrnk/votewatch/internal/core/ports"
)

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) {
	return 0, errors.New("broken pipe")
}

func TestReportDrift(t *testing.T) {
	candidateID := uuid.New()
	drift := []ports.TallyDrift{{CandidateID: candidateID, Ballots: 3, National: 2}}

	var buf bytes.Buffer
	require.NoError(t, reportDrift(&buf, drift))
	assert.Contains(t, buf.String(), candidateID.String())
	assert.Contains(t, buf.String(), `"ballots":3`)

	err := reportDrift(brokenWriter{}, drift)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken pipe")
}
