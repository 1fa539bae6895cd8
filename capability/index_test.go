package capability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndex_ExactCapabilityLookup(t *testing.T) {
	idx := NewIndex(nil)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, "summarize", "condense long text into a short summary", "R1"))
	require.NoError(t, idx.Upsert(ctx, "translate", "translate text between languages", "R2"))

	assert.ElementsMatch(t, []AgentID{"R1"}, idx.FindByCapabilityName("summarize"))
	assert.Empty(t, idx.FindByCapabilityName("nope"))
}

func TestIndex_DegradedSemanticRanksCloserDescriptionHigher(t *testing.T) {
	idx := NewIndex(nil)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, "summarize", "summarize long documents into short summaries", "R1"))
	require.NoError(t, idx.Upsert(ctx, "translate", "translate between human languages", "R2"))

	results, err := idx.FindByCapabilityDescription(ctx, "please summarize this document", 10, 0)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, AgentID("R1"), results[0].Agent)
	if len(results) > 1 {
		assert.Greater(t, results[0].Score, results[1].Score)
	}
}

func TestIndex_UnregisterIsRefcountedAndIdempotent(t *testing.T) {
	idx := NewIndex(nil)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, "summarize", "summarize text", "R1"))
	require.NoError(t, idx.Upsert(ctx, "summarize", "summarize text", "R2"))

	require.NoError(t, idx.Remove(ctx, "summarize", "R1"))
	assert.ElementsMatch(t, []AgentID{"R2"}, idx.FindByCapabilityName("summarize"))

	// Removing again is a no-op, not an error.
	require.NoError(t, idx.Remove(ctx, "summarize", "R1"))
	assert.ElementsMatch(t, []AgentID{"R2"}, idx.FindByCapabilityName("summarize"))
}

func TestIndex_RemoveAgentStripsAllCapabilities(t *testing.T) {
	idx := NewIndex(nil)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, "summarize", "summarize text", "R1"))
	require.NoError(t, idx.Upsert(ctx, "translate", "translate text", "R1"))

	idx.RemoveAgent("R1")
	assert.Empty(t, idx.FindByCapabilityName("summarize"))
	assert.Empty(t, idx.FindByCapabilityName("translate"))
}

func TestIndex_MinScoreFiltersResults(t *testing.T) {
	idx := NewIndex(nil)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, "summarize", "summarize long documents", "R1"))
	require.NoError(t, idx.Upsert(ctx, "unrelated", "completely unrelated capability about weather", "R2"))

	results, err := idx.FindByCapabilityDescription(ctx, "summarize a document", 10, 0.5)
	require.NoError(t, err)
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Score, 0.5)
	}
}
