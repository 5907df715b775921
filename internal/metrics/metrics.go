package metrics

import (
	"context"
	"fmt"

	"contrib.go.opencensus.io/exporter/stackdriver"
	"github.com/obsidian-tools/plugin-manager/internal/config"
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

var (
	CounterUpdateChecks     = stats.Int64("update_checks", "Number of update checks", "1")
	CounterUpdatesInstalled = stats.Int64("updates_installed", "Number of installed updates", "1")
	CounterCacheHit         = stats.Int64("cache_hits", "Number of cache hits", "1")
	CounterCacheMiss        = stats.Int64("cache_misses", "Number of cache misses", "1")

	TagOutcome = tag.MustNewKey("outcome")
	TagKind    = tag.MustNewKey("kind")
	TagCache   = tag.MustNewKey("cache")
)

const (
	CacheRegistry = "registry"
	CacheRequest  = "request"
)

var Views = []*view.View{
	{
		Name:        "update_checks",
		Measure:     CounterUpdateChecks,
		Description: "Number of update checks",
		TagKeys:     []tag.Key{TagKind, TagOutcome},
		Aggregation: view.Count(),
	},
	{
		Name:        "updates_installed",
		Measure:     CounterUpdatesInstalled,
		Description: "Number of installed updates",
		TagKeys:     []tag.Key{TagKind},
		Aggregation: view.Count(),
	},
	{
		Name:        "cache_hits",
		Measure:     CounterCacheHit,
		Description: "Number of cache hits",
		TagKeys:     []tag.Key{TagCache},
		Aggregation: view.Count(),
	},
	{
		Name:        "cache_misses",
		Measure:     CounterCacheMiss,
		Description: "Number of cache misses",
		TagKeys:     []tag.Key{TagCache},
		Aggregation: view.Count(),
	},
}

func RegisterViews() error {
	return view.Register(Views...)
}

// RecordCheck counts one finished check, tagged by target kind and outcome.
func RecordCheck(ctx context.Context, kind, outcome string) {
	ctx, _ = tag.New(ctx, tag.Upsert(TagKind, kind), tag.Upsert(TagOutcome, outcome))
	stats.Record(ctx, CounterUpdateChecks.M(1))
	if outcome == "updated" {
		stats.Record(ctx, CounterUpdatesInstalled.M(1))
	}
}

func RecordCacheHit(ctx context.Context, cache string) {
	ctx, _ = tag.New(ctx, tag.Upsert(TagCache, cache))
	stats.Record(ctx, CounterCacheHit.M(1))
}

func RecordCacheMiss(ctx context.Context, cache string) {
	ctx, _ = tag.New(ctx, tag.Upsert(TagCache, cache))
	stats.Record(ctx, CounterCacheMiss.M(1))
}

func NewExporter(cfg *config.Config) (*stackdriver.Exporter, error) {
	err := RegisterViews()
	if err != nil {
		return nil, err
	}
	exporter, err := stackdriver.NewExporter(stackdriver.Options{
		ProjectID:    cfg.MetricsProjectID,
		MetricPrefix: fmt.Sprintf("plugin-manager/%s", cfg.Stage),
	})
	if err != nil {
		return nil, err
	}
	err = exporter.StartMetricsExporter()
	if err != nil {
		return nil, err
	}
	return exporter, nil
}
