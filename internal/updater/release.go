package updater

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/go-github/v59/github"
	"github.com/obsidian-tools/plugin-manager/internal/fetch"
)

func getOwnerRepo(fullRepo string) (string, string) {
	owner, repo, found := strings.Cut(fullRepo, "/")
	if !found {
		return "", ""
	}

	return owner, repo
}

func isGitHubNotFound(err error) bool {
	var ghErr *github.ErrorResponse
	return errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound
}

func getLatestGitHubRelease(ctx context.Context, ghClient *github.Client, fullRepo string) (*github.RepositoryRelease, error) {
	owner, repo := getOwnerRepo(fullRepo)
	if owner == "" || repo == "" {
		return nil, fmt.Errorf("invalid repository reference %q", fullRepo)
	}
	req, err := ghClient.NewRequest(http.MethodGet, fmt.Sprintf("repos/%s/%s/releases/latest", owner, repo), nil)
	if err != nil {
		return nil, err
	}
	resp, err := ghClient.BareDo(ctx, req)
	if err != nil {
		if isGitHubNotFound(err) {
			return nil, fetch.ErrNotFound
		}
		return nil, err
	}
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	res := fetch.Classify(body, err)
	switch res.Kind {
	case fetch.NotFound:
		return nil, fetch.ErrNotFound
	case fetch.OtherError:
		return nil, res.Err
	}
	var release github.RepositoryRelease
	if err := json.Unmarshal(res.Body, &release); err != nil {
		return nil, fmt.Errorf("failed to decode release: %w", err)
	}
	return &release, nil
}

// FetchLatestRelease returns the latest release of repo, or nil when repo is
// empty, has no release, or the request failed.
func (u *Updater) FetchLatestRelease(ctx context.Context, repo string) *github.RepositoryRelease {
	if repo == "" {
		return nil
	}
	release, err := getLatestGitHubRelease(ctx, u.ghClient, repo)
	if errors.Is(err, fetch.ErrNotFound) {
		return nil
	}
	if err != nil {
		u.log.WithField("repo", repo).Errorf("could not fetch latest release: %v", err)
		return nil
	}
	return release
}
