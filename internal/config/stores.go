package config

import (
	"context"
	"fmt"
	"path/filepath"

	"cloud.google.com/go/firestore"
	"github.com/obsidian-tools/plugin-manager/internal/backup"
	"github.com/obsidian-tools/plugin-manager/internal/fetch"
	"github.com/obsidian-tools/plugin-manager/internal/history"
	"github.com/obsidian-tools/plugin-manager/internal/vault"
)

const (
	BackendNone      = "none"
	BackendLocal     = "local"
	BackendS3        = "s3"
	BackendSQLite    = "sqlite"
	BackendFirestore = "firestore"
)

func (c *Config) CreateFetchClient() *fetch.Client {
	return fetch.New(c.HTTPTimeout, c.HTTPRetryMax)
}

func (c *Config) BackupDir() string {
	return c.ConfigPath("plugins", ".backups")
}

// CreateBackupStore returns nil when backups are disabled.
func (c *Config) CreateBackupStore(adapter vault.Adapter) (backup.Store, error) {
	switch c.BackupBackend {
	case BackendNone:
		return nil, nil
	case BackendLocal, "":
		return backup.NewLocalStore(adapter, c.BackupDir()), nil
	case BackendS3:
		s3Client, err := c.CreateS3Client()
		if err != nil {
			return nil, err
		}
		return backup.NewS3Store(s3Client, c.S3Bucket, fmt.Sprintf("%s/backups", c.Stage)), nil
	default:
		return nil, fmt.Errorf("unknown backup backend %q", c.BackupBackend)
	}
}

func (c *Config) HistoryDBPath() string {
	return filepath.Join(c.VaultDir, filepath.FromSlash(c.ConfigPath("plugin-manager.db")))
}

// CreateHistoryStore returns nil when history is disabled.
func (c *Config) CreateHistoryStore(ctx context.Context) (history.Store, error) {
	switch c.HistoryBackend {
	case BackendNone:
		return nil, nil
	case BackendSQLite, "":
		return history.OpenSQLite(ctx, c.HistoryDBPath())
	case BackendFirestore:
		if c.FirestoreProjectID == "" {
			return nil, fmt.Errorf("FIRESTORE_PROJECT_ID is missing")
		}
		db, err := firestore.NewClient(ctx, c.FirestoreProjectID)
		if err != nil {
			return nil, err
		}
		return history.NewFirestoreStore(db, c.Stage), nil
	default:
		return nil, fmt.Errorf("unknown history backend %q", c.HistoryBackend)
	}
}
