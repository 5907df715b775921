package updater

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/google/go-github/v59/github"
)

// ExtractTag returns the tag_name of release, or "" if there is none.
func ExtractTag(release *github.RepositoryRelease) string {
	if release == nil {
		return ""
	}
	return release.GetTagName()
}

// NormalizeTag strips exactly one leading "v".
func NormalizeTag(tag string) string {
	return strings.TrimPrefix(tag, "v")
}

func compareVersions(tag, current string) (bool, error) {
	tagVersion, err := semver.StrictNewVersion(NormalizeTag(tag))
	if err != nil {
		return false, fmt.Errorf("invalid release tag %q: %w", tag, err)
	}
	currentVersion, err := semver.StrictNewVersion(current)
	if err != nil {
		return false, fmt.Errorf("invalid installed version %q: %w", current, err)
	}
	return tagVersion.GreaterThan(currentVersion), nil
}

// IsNewer reports whether the normalized tag is strictly greater than
// current. Versions that do not parse are never newer.
func IsNewer(tag, current string) bool {
	newer, err := compareVersions(tag, current)
	return err == nil && newer
}
