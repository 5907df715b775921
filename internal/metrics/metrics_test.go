package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opencensus.io/stats/view"
)

func countRows(name string) int64 {
	rows, err := view.RetrieveData(name)
	if err != nil {
		return -1
	}
	var total int64
	for _, row := range rows {
		total += row.Data.(*view.CountData).Value
	}
	return total
}

func TestRecordCheck(t *testing.T) {
	require.NoError(t, RegisterViews())
	checksBefore := countRows("update_checks")
	installedBefore := countRows("updates_installed")

	RecordCheck(context.Background(), "plugin", "up-to-date")
	RecordCheck(context.Background(), "plugin", "updated")
	RecordCheck(context.Background(), "theme", "error")

	require.Eventually(t, func() bool {
		return countRows("update_checks") == checksBefore+3 && countRows("updates_installed") == installedBefore+1
	}, time.Second, 10*time.Millisecond)
}

func TestRecordCache(t *testing.T) {
	require.NoError(t, RegisterViews())
	hitsBefore := countRows("cache_hits")
	missesBefore := countRows("cache_misses")

	RecordCacheHit(context.Background(), CacheRegistry)
	RecordCacheHit(context.Background(), CacheRequest)
	RecordCacheMiss(context.Background(), CacheRegistry)

	require.Eventually(t, func() bool {
		return countRows("cache_hits") == hitsBefore+2 && countRows("cache_misses") == missesBefore+1
	}, time.Second, 10*time.Millisecond)
}
