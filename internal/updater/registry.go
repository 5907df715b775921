package updater

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/obsidian-tools/plugin-manager/internal/fetch"
	"github.com/obsidian-tools/plugin-manager/internal/metrics"
	"github.com/obsidian-tools/plugin-manager/pkg/registry"
	"github.com/patrickmn/go-cache"
)

func registryCacheKey(url string) string {
	return fmt.Sprintf("registry/%s", url)
}

func (u *Updater) fetchRegistry(ctx context.Context) (registry.Entries, error) {
	url := u.target.RegistryURL
	res := fetch.Classify(u.fetcher.Get(ctx, url))
	switch res.Kind {
	case fetch.NotFound:
		return registry.Entries{}, nil
	case fetch.OtherError:
		return nil, res.Err
	}
	var entries registry.Entries
	if err := json.Unmarshal(res.Body, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode registry: %w", err)
	}
	u.cache.Set(registryCacheKey(url), entries, cache.DefaultExpiration)
	return entries, nil
}

// registryEntries returns the registry document, fetching it at most once
// per cache period even when called from many goroutines.
func (u *Updater) registryEntries(ctx context.Context) (registry.Entries, error) {
	key := registryCacheKey(u.target.RegistryURL)
	if cached, ok := u.cache.Get(key); ok {
		metrics.RecordCacheHit(ctx, metrics.CacheRegistry)
		return cached.(registry.Entries), nil
	}
	v, err, _ := u.registryGroup.Do(key, func() (any, error) {
		if cached, ok := u.cache.Get(key); ok {
			return cached.(registry.Entries), nil
		}
		// shared by all waiting callers; outlives the first caller's context
		fetchCtx := context.WithoutCancel(ctx)
		metrics.RecordCacheMiss(fetchCtx, metrics.CacheRegistry)
		return u.fetchRegistry(fetchCtx)
	})
	if err != nil {
		return nil, err
	}
	return v.(registry.Entries), nil
}

// ResolveRepo returns the "owner/name" repository registered for id, or ""
// when id is not registered or the registry could not be fetched.
func (u *Updater) ResolveRepo(ctx context.Context, id string) string {
	entries, err := u.registryEntries(ctx)
	if err != nil {
		u.log.WithField("url", u.target.RegistryURL).Errorf("could not fetch %s registry: %v", u.target.Kind, err)
		return ""
	}
	return entries.Find(id)
}
