package suggest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTokens(t *testing.T) {
	tokens := ExtractTokens(Item{Content: "The quick brown fox"})
	assert.NotContains(t, tokens, "the")
	assert.Contains(t, tokens, "quick")
	assert.Contains(t, tokens, "brown")
	assert.Contains(t, tokens, "fox")
}

func TestExtractTokensCoversAllFields(t *testing.T) {
	tokens := ExtractTokens(Item{
		Content:     "Footprint near the bakery door",
		Description: "Plaster cast, size 11",
		Tags:        []string{"forensics"},
	})
	assert.Contains(t, tokens, "footprint")
	assert.Contains(t, tokens, "plaster")
	assert.Contains(t, tokens, "forensics")
	assert.NotContains(t, tokens, "11") // shorter than three runes
	assert.NotContains(t, tokens, "the")
}

func TestPairKeyOrderIndependent(t *testing.T) {
	assert.Equal(t, PairKey("a", "b"), PairKey("b", "a"))
}

func TestDiscoverLinksScoresSharedTokens(t *testing.T) {
	base := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	items := []Item{
		{ID: "ev-1", Content: "witness saw a baker on Baker Street", SubmittedAt: base},
		{ID: "ev-2", Content: "footprint found on Baker Street", SubmittedAt: base.Add(10 * time.Minute)},
		{ID: "ev-3", Content: "unrelated ledger entry", SubmittedAt: base.Add(2 * time.Hour)},
	}

	got := DiscoverLinks(items, nil)
	require.Len(t, got, 1)
	s := got[0]
	assert.Equal(t, "ev-1", s.SourceDataID)
	assert.Equal(t, "ev-2", s.TargetDataID)
	assert.Equal(t, []string{"baker", "street"}, s.SharedTokens)
	assert.True(t, s.HasTemporalBonus)
	assert.Equal(t, 2*25+20, s.Score)
}

func TestDiscoverLinksNoTemporalBonusOutsideWindow(t *testing.T) {
	base := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	items := []Item{
		{ID: "ev-1", Content: "blue sedan parked outside", SubmittedAt: base},
		{ID: "ev-2", Content: "blue sedan spotted again", SubmittedAt: base.Add(31 * time.Minute)},
	}

	got := DiscoverLinks(items, nil)
	require.Len(t, got, 1)
	assert.False(t, got[0].HasTemporalBonus)
	assert.Equal(t, 2*25, got[0].Score)
}

func TestDiscoverLinksSkipsExistingPairs(t *testing.T) {
	items := []Item{
		{ID: "ev-1", Content: "matching serial number"},
		{ID: "ev-2", Content: "same serial number stamped"},
	}
	existing := map[string]struct{}{PairKey("ev-2", "ev-1"): {}}

	assert.Empty(t, DiscoverLinks(items, existing))
}

func TestDiscoverLinksOrderedByScore(t *testing.T) {
	base := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	items := []Item{
		{ID: "ev-1", Content: "crowbar paint chips warehouse", SubmittedAt: base},
		{ID: "ev-2", Content: "crowbar paint chips found inside warehouse", SubmittedAt: base.Add(5 * time.Minute)},
		{ID: "ev-3", Content: "warehouse lease agreement", SubmittedAt: base.Add(3 * time.Hour)},
	}

	got := DiscoverLinks(items, nil)
	require.Len(t, got, 3)
	assert.GreaterOrEqual(t, got[0].Score, got[1].Score)
	assert.GreaterOrEqual(t, got[1].Score, got[2].Score)
	assert.Equal(t, PairKey("ev-1", "ev-2"), PairKey(got[0].SourceDataID, got[0].TargetDataID))
}
