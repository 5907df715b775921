package history

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/obsidian-tools/plugin-manager/pkg/registry"
)

type fsCheckResult struct {
	ID               string
	Kind             string
	Repo             string
	InstalledVersion string
	LatestTag        string
	UpdateAvailable  bool
	Updated          bool
	Error            string
	CheckedAt        time.Time
}

type FirestoreStore struct {
	db               *firestore.Client
	collectionPrefix string
}

// NewFirestoreStore keeps results in the <collectionPrefix>-update-history
// collection.
func NewFirestoreStore(db *firestore.Client, collectionPrefix string) *FirestoreStore {
	return &FirestoreStore{db: db, collectionPrefix: collectionPrefix}
}

func (s *FirestoreStore) collection() *firestore.CollectionRef {
	return s.db.Collection(s.collectionPrefix + "-update-history")
}

func (s *FirestoreStore) Record(ctx context.Context, result *registry.CheckResult) error {
	_, err := s.collection().NewDoc().Set(ctx, &fsCheckResult{
		ID:               result.ID,
		Kind:             string(result.Kind),
		Repo:             result.Repo,
		InstalledVersion: result.InstalledVersion,
		LatestTag:        result.LatestTag,
		UpdateAvailable:  result.UpdateAvailable,
		Updated:          result.Updated,
		Error:            result.Error,
		CheckedAt:        result.CheckedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to save history entry: %w", err)
	}
	return nil
}

func (s *FirestoreStore) List(ctx context.Context, limit int) ([]*registry.CheckResult, error) {
	docs, err := s.collection().OrderBy("CheckedAt", firestore.Desc).Limit(normalizeLimit(limit)).Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	results := make([]*registry.CheckResult, 0, len(docs))
	for _, doc := range docs {
		var r fsCheckResult
		if err := doc.DataTo(&r); err != nil {
			return nil, err
		}
		results = append(results, &registry.CheckResult{
			ID:               r.ID,
			Kind:             registry.Kind(r.Kind),
			Repo:             r.Repo,
			InstalledVersion: r.InstalledVersion,
			LatestTag:        r.LatestTag,
			UpdateAvailable:  r.UpdateAvailable,
			Updated:          r.Updated,
			Error:            r.Error,
			CheckedAt:        r.CheckedAt,
		})
	}
	return results, nil
}

func (s *FirestoreStore) Close() error {
	return s.db.Close()
}
