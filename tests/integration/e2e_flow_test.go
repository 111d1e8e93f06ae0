//go:build integration

// End-to-end flows through the HTTP surface only, without direct
// database manipulation: issue a batch, look every token up, redeem,
// and observe the terminal state.
package integration

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestE2E_IssueSelectRedeemFlow walks the full token lifecycle.
func TestE2E_IssueSelectRedeemFlow(t *testing.T) {
	cleanupTables(t)

	const batchSize = 25

	tokens := make([]string, 0, batchSize)
	for i := 0; i < batchSize; i++ {
		tokens = append(tokens, fmt.Sprintf("E2E_TOKEN_%02d", i))
	}

	// 1. Issue the batch
	resp, err := postJSON(formatURL("/api/redeems"), map[string]any{
		"company": "initech",
		"reward":  750,
		"tokens":  tokens,
	})
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// 2. Round-trip: every token comes back with its original state
	for _, token := range tokens {
		resp, err := getJSON(formatURL("/api/redeems/" + token))
		require.NoError(t, err)

		var body map[string]any
		require.NoError(t, readJSONResponse(resp, &body))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, token, body["token"])
		assert.Equal(t, "initech", body["company"])
		assert.Equal(t, float64(750), body["reward"])
		assert.Equal(t, false, body["redeemed"])
		assert.Equal(t, float64(1), body["version"])
	}

	// 3. Redeem one token
	resp, err = postJSON(formatURL("/api/redeems/redeem"), map[string]string{
		"username": "pete@example.com",
		"token":    tokens[0],
	})
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// 4. The redeemed token reflects its terminal state
	resp, err = getJSON(formatURL("/api/redeems/" + tokens[0]))
	require.NoError(t, err)

	var redeemedBody map[string]any
	require.NoError(t, readJSONResponse(resp, &redeemedBody))
	assert.Equal(t, true, redeemedBody["redeemed"])
	assert.Equal(t, "pete@example.com", redeemedBody["username"])
	assert.Equal(t, float64(2), redeemedBody["version"])

	// 5. The other tokens are untouched
	resp, err = getJSON(formatURL("/api/redeems/" + tokens[1]))
	require.NoError(t, err)

	var untouchedBody map[string]any
	require.NoError(t, readJSONResponse(resp, &untouchedBody))
	assert.Equal(t, false, untouchedBody["redeemed"])
}

// TestE2E_HealthReportsConnectedStore verifies the health surface over
// a live store.
func TestE2E_HealthReportsConnectedStore(t *testing.T) {
	resp, err := getJSON(formatURL("/health"))
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, readJSONResponse(resp, &body))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "connected", body["persistence"])
}
