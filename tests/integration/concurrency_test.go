//go:build integration

package integration

import (
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestConcurrentRedeem_ExactlyOneWinner races many users for one token
// and verifies the conditional-update compare-and-swap lets exactly one
// through.
func TestConcurrentRedeem_ExactlyOneWinner(t *testing.T) {
	cleanupTables(t)

	const (
		token      = "RACE_TOKEN"
		contenders = 20
	)
	createTestToken(t, token, "acme", 500)

	var wg sync.WaitGroup
	results := make(chan int, contenders)

	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(username string) {
			defer wg.Done()

			resp, err := postJSON(formatURL("/api/redeems/redeem"), map[string]string{
				"username": username,
				"token":    token,
			})
			if err != nil {
				results <- 0
				return
			}
			defer resp.Body.Close()
			results <- resp.StatusCode
		}(fmt.Sprintf("user_%d@example.com", i))
	}

	wg.Wait()
	close(results)

	var winners, losers, others int
	for status := range results {
		switch status {
		case http.StatusOK:
			winners++
		case http.StatusConflict:
			losers++
		default:
			others++
		}
	}

	assert.Equal(t, 1, winners, "exactly one concurrent redeem must succeed")
	assert.Equal(t, contenders-1, losers, "every other attempt must lose cleanly")
	assert.Zero(t, others, "no attempt may fail with an unexpected status")

	redeemed, username, version := getTokenFromDB(t, token)
	assert.True(t, redeemed)
	assert.NotEmpty(t, username, "the winning user must be recorded")
	assert.Equal(t, 2, version, "version must increment by exactly 1 despite the race")
}

// TestConcurrentRedeem_DistinctTokensAllWin verifies the race guard is
// per token: contention on one token must not starve others.
func TestConcurrentRedeem_DistinctTokensAllWin(t *testing.T) {
	cleanupTables(t)

	const tokens = 10
	for i := 0; i < tokens; i++ {
		createTestToken(t, fmt.Sprintf("SOLO_%d", i), "acme", 100)
	}

	var wg sync.WaitGroup
	results := make(chan int, tokens)

	for i := 0; i < tokens; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			resp, err := postJSON(formatURL("/api/redeems/redeem"), map[string]string{
				"username": fmt.Sprintf("user_%d@example.com", i),
				"token":    fmt.Sprintf("SOLO_%d", i),
			})
			if err != nil {
				results <- 0
				return
			}
			defer resp.Body.Close()
			results <- resp.StatusCode
		}(i)
	}

	wg.Wait()
	close(results)

	for status := range results {
		require.Equal(t, http.StatusOK, status, "uncontended redeems must all succeed")
	}
}
