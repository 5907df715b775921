package registry

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEntriesFind(t *testing.T) {
	entries := Entries{
		{ID: "demo", Repo: "acme/demo"},
		{ID: "other", Repo: "acme/other"},
		{ID: "demo", Repo: "acme/demo-fork"},
		{Name: "Minimal", Repo: "kepano/obsidian-minimal"},
	}
	require.Equal(t, "acme/demo", entries.Find("demo"))
	require.Equal(t, "acme/other", entries.Find("other"))
	require.Equal(t, "kepano/obsidian-minimal", entries.Find("Minimal"))
	require.Equal(t, "", entries.Find("unknown-plugin"))
}

func TestAssetSetComplete(t *testing.T) {
	require.False(t, (*AssetSet)(nil).Complete())
	require.False(t, (&AssetSet{Primary: []byte("x")}).Complete())
	require.False(t, (&AssetSet{Manifest: []byte("{}")}).Complete())
	require.True(t, (&AssetSet{Primary: []byte("x"), Manifest: []byte("{}")}).Complete())
}

func TestCheckResultOutcome(t *testing.T) {
	testCases := []struct {
		input    *CheckResult
		expected string
	}{
		{input: &CheckResult{ID: "a"}, expected: "unregistered"},
		{input: &CheckResult{ID: "a", Repo: "o/a"}, expected: "no-release"},
		{input: &CheckResult{ID: "a", Repo: "o/a", LatestTag: "1.0.0"}, expected: "up-to-date"},
		{input: &CheckResult{ID: "a", Repo: "o/a", LatestTag: "2.0.0", UpdateAvailable: true}, expected: "available"},
		{input: &CheckResult{ID: "a", Repo: "o/a", LatestTag: "2.0.0", UpdateAvailable: true, Updated: true}, expected: "updated"},
		{input: &CheckResult{ID: "a", Error: "boom"}, expected: "error"},
	}
	for _, testCase := range testCases {
		require.Equal(t, testCase.expected, testCase.input.Outcome())
	}
	require.Equal(t, "demo@1.5.0 -> v2.0.0 (updated)", (&CheckResult{
		ID: "demo", Repo: "acme/demo", InstalledVersion: "1.5.0", LatestTag: "v2.0.0", UpdateAvailable: true, Updated: true,
	}).String())
}
