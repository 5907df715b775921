package installer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/obsidian-tools/plugin-manager/internal/backup"
	"github.com/obsidian-tools/plugin-manager/internal/config"
	"github.com/obsidian-tools/plugin-manager/internal/vault"
	"github.com/obsidian-tools/plugin-manager/pkg/registry"
	"github.com/sirupsen/logrus"
)

// Installer writes downloaded release files into the vault.
type Installer struct {
	log     *logrus.Logger
	adapter vault.Adapter
	backups backup.Store
	now     func() time.Time
}

// New creates an installer. backups may be nil to skip snapshots.
func New(log *logrus.Logger, adapter vault.Adapter, backups backup.Store) *Installer {
	return &Installer{
		log:     log,
		adapter: adapter,
		backups: backups,
		now:     time.Now,
	}
}

func (i *Installer) exists(ctx context.Context, p string) bool {
	ok, err := i.adapter.Exists(ctx, p)
	if err != nil {
		i.log.WithField("path", p).Warnf("could not stat: %v", err)
		return false
	}
	return ok
}

// Install writes assets to <target dir>/<id>/. Incomplete asset sets are
// ignored. Every file is written even if an earlier write failed; all write
// errors are returned joined.
func (i *Installer) Install(ctx context.Context, target *config.Target, id string, assets *registry.AssetSet) error {
	logger := i.log.WithFields(logrus.Fields{"plugin": id, "op": "install"})
	if err := vault.ValidateName(id); err != nil {
		logger.Errorf("refusing to install: %v", err)
		return err
	}
	if !assets.Complete() {
		logger.Warnf("%s or %s was not downloaded, skipping install", target.PrimaryFile, target.ManifestFile)
		return nil
	}

	dir := path.Join(target.Dir, id)
	manifestPath := path.Join(dir, target.ManifestFile)
	if !i.exists(ctx, dir) || !i.exists(ctx, manifestPath) {
		if err := i.adapter.Mkdir(ctx, dir); err != nil {
			logger.Errorf("could not create directory %s: %v", dir, err)
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	} else if i.backups != nil {
		if key, err := i.Backup(ctx, target, id); err != nil {
			logger.Warnf("could not back up previous install: %v", err)
		} else {
			logger.Infof("backed up previous install to %s", key)
		}
	}

	files := []backup.File{
		{Name: target.PrimaryFile, Data: assets.Primary},
		{Name: target.ManifestFile, Data: assets.Manifest},
	}
	if assets.Style != nil && target.StyleFile != "" {
		files = append(files, backup.File{Name: target.StyleFile, Data: assets.Style})
	}
	return i.writeFiles(ctx, logger, dir, files)
}

func (i *Installer) writeFiles(ctx context.Context, logger *logrus.Entry, dir string, files []backup.File) error {
	var errs []error
	for _, f := range files {
		p := path.Join(dir, f.Name)
		if err := i.adapter.Write(ctx, p, f.Data); err != nil {
			logger.Errorf("could not write %s: %v", p, err)
			errs = append(errs, fmt.Errorf("failed to write %s: %w", p, err))
		}
	}
	return errors.Join(errs...)
}

func (i *Installer) installedVersion(ctx context.Context, manifestPath string) string {
	data, err := i.adapter.Read(ctx, manifestPath)
	if err != nil {
		return "unknown"
	}
	var m vault.Manifest
	if err := json.Unmarshal(data, &m); err != nil || m.Version == "" {
		return "unknown"
	}
	return m.Version
}

func backupKeyPrefix(target *config.Target, id string) string {
	return fmt.Sprintf("%ss/%s/", target.Kind, id)
}

func backupKey(target *config.Target, id, version string, ts time.Time) (string, error) {
	if err := vault.ValidateName(version); err != nil {
		return "", fmt.Errorf("unusable version in manifest of %s: %w", id, err)
	}
	return fmt.Sprintf("%s%s-%s.tar.gz", backupKeyPrefix(target, id), version, ts.UTC().Format("20060102T150405Z")), nil
}

// Backup archives the currently installed files of id into the backup
// store and returns the key of the snapshot.
func (i *Installer) Backup(ctx context.Context, target *config.Target, id string) (string, error) {
	if i.backups == nil {
		return "", fmt.Errorf("no backup store configured")
	}
	if err := vault.ValidateName(id); err != nil {
		return "", err
	}
	dir := path.Join(target.Dir, id)
	files := make([]backup.File, 0, 3)
	for _, name := range target.FileNames() {
		data, err := i.adapter.Read(ctx, path.Join(dir, name))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", err
		}
		files = append(files, backup.File{Name: name, Data: data})
	}
	if len(files) == 0 {
		return "", fmt.Errorf("%s is not installed", id)
	}
	now := i.now()
	archive, checksum, err := backup.Archive(files, now)
	if err != nil {
		return "", err
	}
	key, err := backupKey(target, id, i.installedVersion(ctx, path.Join(dir, target.ManifestFile)), now)
	if err != nil {
		return "", err
	}
	if err := i.backups.Save(ctx, key, archive, checksum); err != nil {
		return "", err
	}
	return key, nil
}

// Restore writes the files of the snapshot stored under key back into the
// install directory of id.
func (i *Installer) Restore(ctx context.Context, target *config.Target, id, key string) error {
	if i.backups == nil {
		return fmt.Errorf("no backup store configured")
	}
	if err := vault.ValidateName(id); err != nil {
		return err
	}
	if err := backup.ValidateKey(key); err != nil {
		return err
	}
	if !strings.HasPrefix(key, backupKeyPrefix(target, id)) {
		return fmt.Errorf("backup %s does not belong to %s %s", key, target.Kind, id)
	}
	archive, err := i.backups.Load(ctx, key)
	if err != nil {
		return err
	}
	files, err := backup.Extract(archive)
	if err != nil {
		return err
	}
	allowed := make(map[string]bool)
	for _, name := range target.FileNames() {
		allowed[name] = true
	}
	for _, f := range files {
		if !allowed[f.Name] {
			return fmt.Errorf("unexpected file %q in backup %s", f.Name, key)
		}
	}
	dir := path.Join(target.Dir, id)
	if err := i.adapter.Mkdir(ctx, dir); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return i.writeFiles(ctx, i.log.WithFields(logrus.Fields{"plugin": id, "op": "restore"}), dir, files)
}
