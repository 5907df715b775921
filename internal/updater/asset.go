package updater

import (
	"context"
	"net/url"

	"github.com/obsidian-tools/plugin-manager/internal/fetch"
	"github.com/obsidian-tools/plugin-manager/pkg/registry"
)

func (u *Updater) assetURL(repo, tag, fileName string) (string, error) {
	return url.JoinPath(u.downloadURL, repo, "releases", "download", tag, fileName)
}

// FetchAsset downloads one file of the release tagged tag. It returns nil
// when the file is not published or the download failed.
func (u *Updater) FetchAsset(ctx context.Context, repo, tag, fileName string) []byte {
	if repo == "" || tag == "" {
		return nil
	}
	assetURL, err := u.assetURL(repo, tag, fileName)
	if err != nil {
		u.log.WithField("repo", repo).Errorf("could not build download URL for %s: %v", fileName, err)
		return nil
	}
	res := fetch.Classify(u.fetcher.Get(ctx, assetURL))
	switch res.Kind {
	case fetch.NotFound:
		return nil
	case fetch.OtherError:
		u.log.WithField("url", assetURL).Errorf("could not download release file: %v", res.Err)
		return nil
	}
	return res.Body
}

// FetchAssets downloads every release file of the target independently.
func (u *Updater) FetchAssets(ctx context.Context, repo, tag string) *registry.AssetSet {
	assets := &registry.AssetSet{
		Primary:  u.FetchAsset(ctx, repo, tag, u.target.PrimaryFile),
		Manifest: u.FetchAsset(ctx, repo, tag, u.target.ManifestFile),
	}
	if u.target.StyleFile != "" {
		assets.Style = u.FetchAsset(ctx, repo, tag, u.target.StyleFile)
	}
	return assets
}
