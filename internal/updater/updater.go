package updater

import (
	"context"
	"fmt"
	"time"

	"github.com/gobwas/glob"
	"github.com/google/go-github/v59/github"
	"github.com/obsidian-tools/plugin-manager/internal/config"
	"github.com/obsidian-tools/plugin-manager/internal/host"
	"github.com/obsidian-tools/plugin-manager/internal/metrics"
	"github.com/obsidian-tools/plugin-manager/pkg/registry"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

const decisionNoticeDuration = 10 * time.Second

type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

type Installer interface {
	Install(ctx context.Context, target *config.Target, id string, assets *registry.AssetSet) error
}

type Recorder interface {
	Record(ctx context.Context, result *registry.CheckResult) error
}

type Options struct {
	Target      *config.Target
	Fetcher     Fetcher
	GitHub      *github.Client
	DownloadURL string
	Installer   Installer
	Notifier    host.Notifier
	// optional
	History     Recorder
	Cache       *cache.Cache
	Concurrency int64
}

// Updater checks and updates the installed add-ons of one target.
type Updater struct {
	log           *logrus.Logger
	target        *config.Target
	fetcher       Fetcher
	ghClient      *github.Client
	downloadURL   string
	installer     Installer
	notifier      host.Notifier
	history       Recorder
	cache         *cache.Cache
	registryGroup singleflight.Group
	sem           *semaphore.Weighted
	now           func() time.Time
}

func New(log *logrus.Logger, opts *Options) *Updater {
	c := opts.Cache
	if c == nil {
		c = cache.New(5*time.Minute, 10*time.Minute)
	}
	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Updater{
		log:         log,
		target:      opts.Target,
		fetcher:     opts.Fetcher,
		ghClient:    opts.GitHub,
		downloadURL: opts.DownloadURL,
		installer:   opts.Installer,
		notifier:    opts.Notifier,
		history:     opts.History,
		cache:       c,
		sem:         semaphore.NewWeighted(concurrency),
		now:         time.Now,
	}
}

func (u *Updater) Target() *config.Target {
	return u.target
}

func (u *Updater) newResult(record *registry.PluginRecord) *registry.CheckResult {
	return &registry.CheckResult{
		ID:               record.ID,
		Kind:             u.target.Kind,
		InstalledVersion: record.Version,
		CheckedAt:        u.now().UTC(),
	}
}

func (u *Updater) decide(ctx context.Context, result *registry.CheckResult) {
	result.Repo = u.ResolveRepo(ctx, result.ID)
	if result.Repo == "" {
		return
	}
	result.LatestTag = ExtractTag(u.FetchLatestRelease(ctx, result.Repo))
	if result.LatestTag == "" {
		return
	}
	newer, err := compareVersions(result.LatestTag, result.InstalledVersion)
	if err != nil {
		u.log.WithField("id", result.ID).Debugf("skipping version comparison: %v", err)
		return
	}
	result.UpdateAvailable = newer
}

func (u *Updater) finish(ctx context.Context, result *registry.CheckResult) *registry.CheckResult {
	u.log.WithField("kind", result.Kind).Debug(result.String())
	metrics.RecordCheck(ctx, string(result.Kind), result.Outcome())
	if u.history != nil {
		if err := u.history.Record(ctx, result); err != nil {
			u.log.WithField("id", result.ID).Warnf("could not record history: %v", err)
		}
	}
	return result
}

// Check resolves the latest release of record and decides whether it is
// newer than the installed version. Nothing is downloaded.
func (u *Updater) Check(ctx context.Context, record *registry.PluginRecord) *registry.CheckResult {
	result := u.newResult(record)
	u.decide(ctx, result)
	return u.finish(ctx, result)
}

// Update runs the full flow for one record and installs the latest release
// when it is newer than the installed version.
func (u *Updater) Update(ctx context.Context, record *registry.PluginRecord) *registry.CheckResult {
	result := u.newResult(record)
	u.notifier.Notify(fmt.Sprintf("start to update %s", record.ID), 0)
	u.decide(ctx, result)
	if !result.UpdateAvailable {
		return u.finish(ctx, result)
	}

	u.notifier.Notify(fmt.Sprintf("updating %s %s to %s", u.target.Kind, record.ID, result.LatestTag), decisionNoticeDuration)
	assets := u.FetchAssets(ctx, result.Repo, result.LatestTag)
	if !assets.Complete() {
		result.Error = fmt.Sprintf("release %s is missing %s or %s", result.LatestTag, u.target.PrimaryFile, u.target.ManifestFile)
	}
	if err := u.installer.Install(ctx, u.target, record.ID, assets); err != nil {
		result.Error = err.Error()
	}
	if result.Error != "" {
		u.notifier.Notify(fmt.Sprintf("failed to update %s %s: %s", u.target.Kind, record.ID, result.Error), 0)
		return u.finish(ctx, result)
	}
	result.Updated = true
	u.notifier.Notify(fmt.Sprintf("updated %s %s to %s", u.target.Kind, record.ID, result.LatestTag), 0)
	return u.finish(ctx, result)
}

func (u *Updater) runAll(ctx context.Context, records []*registry.PluginRecord, fn func(context.Context, *registry.PluginRecord) *registry.CheckResult) []*registry.CheckResult {
	results := make([]*registry.CheckResult, len(records))
	var g errgroup.Group
	for i, record := range records {
		i, record := i, record
		g.Go(func() error {
			if err := u.sem.Acquire(ctx, 1); err != nil {
				results[i] = u.newResult(record)
				results[i].Error = err.Error()
				return nil
			}
			defer u.sem.Release(1)
			results[i] = fn(ctx, record)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// UpdateAll updates every record concurrently and returns once all of them
// have finished. Results are in the order of records.
func (u *Updater) UpdateAll(ctx context.Context, records []*registry.PluginRecord) []*registry.CheckResult {
	return u.runAll(ctx, records, u.Update)
}

func (u *Updater) CheckAll(ctx context.Context, records []*registry.PluginRecord) []*registry.CheckResult {
	return u.runAll(ctx, records, u.Check)
}

// Filter keeps the records whose id matches at least one of patterns. No
// patterns keeps everything.
func Filter(records []*registry.PluginRecord, patterns []string) ([]*registry.PluginRecord, error) {
	if len(patterns) == 0 {
		return records, nil
	}
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
		}
		globs = append(globs, g)
	}
	filtered := make([]*registry.PluginRecord, 0, len(records))
	for _, r := range records {
		for _, g := range globs {
			if g.Match(r.ID) {
				filtered = append(filtered, r)
				break
			}
		}
	}
	return filtered, nil
}
