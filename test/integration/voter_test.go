package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vncsmyrnk/votewatch/internal/core/domain"
)

func (app *TestApp) verify(t *testing.T, token, vin, card string) (*http.Response, map[string]any) {
	t.Helper()

	body, _ := json.Marshal(map[string]string{"vin": vin, "voter_card_number": card})
	req, err := http.NewRequest("POST", app.Server.URL+"/api/voters/verify", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: "access_token", Value: token})

	resp, err := app.Client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func TestVerifyVoterIsIdempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	app := setupTestApp(t)
	defer app.Teardown(t)

	app.registerCredential(t, "90F5B1234567", "CARD-001", true, pu1)
	token := createToken(t, "sub-verify")

	resp, first := app.verify(t, token, "90f5b1234567 ", "card-001")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, first["is_valid"])

	var verifiedAt1 string
	require.NoError(t, app.DB.QueryRow("SELECT verified_at::text FROM voters WHERE id = 'sub-verify'").Scan(&verifiedAt1))

	resp, second := app.verify(t, token, "90F5B1234567", "CARD-001")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, first["assignment"], second["assignment"])

	var verifiedAt2 string
	require.NoError(t, app.DB.QueryRow("SELECT verified_at::text FROM voters WHERE id = 'sub-verify'").Scan(&verifiedAt2))
	assert.Equal(t, verifiedAt1, verifiedAt2)

	// Only hashes are stored.
	assert.Equal(t, 0, app.count(t, "SELECT COUNT(*) FROM voters WHERE credential_hash ILIKE '%90F5B%'"))
}

func TestVerifyVoterRejections(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	app := setupTestApp(t)
	defer app.Teardown(t)

	app.registerCredential(t, "90F5B1234567", "CARD-001", true, pu1)
	app.registerCredential(t, "90F5B7654321", "CARD-002", false, pu1)

	tests := []struct {
		vin, card string
		status    int
		want      error
	}{
		{"00000000000", "CARD-001", http.StatusUnprocessableEntity, domain.ErrCredentialNotFound},
		{"90F5B1234567", "CARD-999", http.StatusUnprocessableEntity, domain.ErrCredentialMismatch},
		{"90F5B7654321", "CARD-002", http.StatusUnprocessableEntity, domain.ErrCredentialInactive},
	}
	for i, tt := range tests {
		resp, body := app.verify(t, createToken(t, fmt.Sprintf("sub-%d", i)), tt.vin, tt.card)
		assert.Equal(t, tt.status, resp.StatusCode)
		assert.Equal(t, false, body["is_valid"])
		assert.Equal(t, domain.UserMessage(tt.want), body["message"])
	}
	assert.Equal(t, 0, app.count(t, "SELECT COUNT(*) FROM voters"))

	resp, _ := app.verify(t, createToken(t, "sub-owner"), "90F5B1234567", "CARD-001")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := app.verify(t, createToken(t, "sub-other"), "90F5B1234567", "CARD-001")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, domain.UserMessage(domain.ErrCredentialClaimed), body["message"])
}
