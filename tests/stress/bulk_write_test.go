//go:build stress

package stress

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/iot-persistence/internal/model"
)

// TestBulkWrites_UsersEventuallyPersisted floods the fire-and-forget
// user path and verifies the submissions return immediately while every
// record eventually lands.
func TestBulkWrites_UsersEventuallyPersisted(t *testing.T) {
	cleanupTables(t)

	const (
		batches   = 20
		batchSize = 25
	)

	start := time.Now()
	for b := 0; b < batches; b++ {
		users := make([]*model.User, 0, batchSize)
		for i := 0; i < batchSize; i++ {
			users = append(users, &model.User{
				Email:        fmt.Sprintf("user_%d_%d@example.com", b, i),
				AppName:      "Dashboard",
				Region:       "eu",
				LastModified: time.Now(),
				Profile:      []byte(`{"dashboards":[]}`),
			})
		}
		testManager.SaveUsers(users)
	}
	submitDuration := time.Since(start)

	// Dispatch must not scale with write latency
	assert.Less(t, submitDuration, 2*time.Second,
		"fire-and-forget submission must return without waiting on the store")

	require.Eventually(t, func() bool {
		var count int
		if err := testPool.QueryRow(context.Background(),
			"SELECT COUNT(*) FROM users").Scan(&count); err != nil {
			return false
		}
		return count == batches*batchSize
	}, 30*time.Second, 200*time.Millisecond, "all user batches must eventually persist")
}

// TestBulkWrites_ReportingEventuallyPersisted does the same for the
// reporting path, then purges and verifies retention.
func TestBulkWrites_ReportingEventuallyPersisted(t *testing.T) {
	cleanupTables(t)

	now := time.Now()
	fresh := now.UnixMilli()
	stale := now.Add(-24 * time.Hour).UnixMilli()

	batch := model.ReportingBatch{}
	for pin := 0; pin < 10; pin++ {
		v := &model.AggregationValue{}
		v.Add(float64(pin))
		v.Add(float64(pin) * 3)
		batch[model.AggregationKey{
			Username: "pete@example.com",
			DeviceID: 1,
			Pin:      pin,
			PinType:  "v",
			Ts:       fresh,
		}] = v
	}
	staleBatch := model.ReportingBatch{
		{Username: "pete@example.com", DeviceID: 1, Pin: 99, PinType: "v", Ts: stale}: {Sum: 1, Count: 1},
	}

	testManager.InsertReporting(batch, model.Minute)
	testManager.InsertReporting(staleBatch, model.Minute)

	require.Eventually(t, func() bool {
		var count int
		if err := testPool.QueryRow(context.Background(),
			"SELECT COUNT(*) FROM reporting_average_minute").Scan(&count); err != nil {
			return false
		}
		return count == 11
	}, 30*time.Second, 200*time.Millisecond)

	// Purge drops only the row outside the minute retention window
	testManager.CleanOldReportingRecords(now)

	require.Eventually(t, func() bool {
		var count int
		if err := testPool.QueryRow(context.Background(),
			"SELECT COUNT(*) FROM reporting_average_minute").Scan(&count); err != nil {
			return false
		}
		return count == 10
	}, 30*time.Second, 200*time.Millisecond, "purge must remove aged-out rows and keep fresh ones")
}
