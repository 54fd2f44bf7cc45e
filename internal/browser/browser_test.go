package browser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeSource struct{ windows []Window }

func (f fakeSource) Windows(ctx context.Context) ([]Window, error) { return f.windows, nil }

func TestExtractDomainKnownSite(t *testing.T) {
	domain, browserID, ok := ExtractDomain("(3) Discord | #general - Google Chrome")
	require.True(t, ok)
	require.Equal(t, "discord.com", domain)
	require.Equal(t, "chrome", browserID)
}

func TestExtractDomainLongerSignaturePreferred(t *testing.T) {
	domain, _, ok := ExtractDomain("YouTube Music - Mozilla Firefox")
	require.True(t, ok)
	require.Equal(t, "music.youtube.com", domain)
}

func TestExtractDomainNonBrowserWindowNotMatched(t *testing.T) {
	_, _, ok := ExtractDomain("Terminal - konsole")
	require.False(t, ok)
}

func TestExtractDomainUnknownSiteStillTracked(t *testing.T) {
	domain, browserID, ok := ExtractDomain("Some Obscure Game Portal - Google Chrome")
	require.True(t, ok)
	require.Equal(t, "chrome", browserID)
	require.Contains(t, domain, "unknown:")
}

func TestActiveDomainsDedupesAndDropsUnknown(t *testing.T) {
	r := New(fakeSource{windows: []Window{
		{ID: "1", Title: "Discord | #general - Google Chrome"},
		{ID: "2", Title: "Discord | #random - Google Chrome"},
		{ID: "3", Title: "YouTube - Brave"},
		{ID: "4", Title: "Mystery App Xyz123 - Google Chrome"},
	}})

	active, err := r.ActiveDomains(context.Background())
	require.NoError(t, err)
	require.Len(t, active, 2)
	require.Equal(t, "chrome", active["discord.com"])
	require.Equal(t, "brave", active["youtube.com"])
}
