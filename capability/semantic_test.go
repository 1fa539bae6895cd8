package capability

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbeddingIndex is an in-memory EmbeddingIndex stand-in used to test
// SemanticIndex's re-embed-on-change and persistence pass-through behavior
// without a real vector backend.
type fakeEmbeddingIndex struct {
	upsertCalls int32
	byKey       map[string]string
}

func newFakeEmbeddingIndex() *fakeEmbeddingIndex {
	return &fakeEmbeddingIndex{byKey: make(map[string]string)}
}

func (f *fakeEmbeddingIndex) Upsert(_ context.Context, key, text string) error {
	atomic.AddInt32(&f.upsertCalls, 1)
	f.byKey[key] = text
	return nil
}

func (f *fakeEmbeddingIndex) Remove(_ context.Context, key string) error {
	delete(f.byKey, key)
	return nil
}

func (f *fakeEmbeddingIndex) Query(_ context.Context, text string, k int) ([]RawMatch, error) {
	matches := make([]RawMatch, 0, len(f.byKey))
	for key, stored := range f.byKey {
		score := 0.0
		if stored == text {
			score = 1
		} else {
			score = degradedScore(text, stored)
		}
		matches = append(matches, RawMatch{CapabilityKey: key, RawScore: score})
	}
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (f *fakeEmbeddingIndex) Persist(_ context.Context, path string) error { return nil }
func (f *fakeEmbeddingIndex) Restore(_ context.Context, path string) error { return nil }

func TestSemanticIndex_ReembedsOnlyOnDescriptionChange(t *testing.T) {
	backend := newFakeEmbeddingIndex()
	si := NewSemanticIndex(backend)
	ctx := context.Background()

	require.NoError(t, si.Upsert(ctx, "key-a", "summarize text"))
	require.NoError(t, si.Upsert(ctx, "key-a", "summarize text"))
	assert.EqualValues(t, 1, atomic.LoadInt32(&backend.upsertCalls))

	require.NoError(t, si.Upsert(ctx, "key-a", "summarize text concisely"))
	assert.EqualValues(t, 2, atomic.LoadInt32(&backend.upsertCalls))
}

func TestSemanticIndex_SharesEmbeddingAcrossIdenticalDescriptions(t *testing.T) {
	idx := NewIndex(nil)
	backend := newFakeEmbeddingIndex()
	idx.semantic = NewSemanticIndex(backend)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, "summarize", "summarize text", "R1"))
	require.NoError(t, idx.Upsert(ctx, "condense", "summarize text", "R2"))

	// Both capability names share one embedding keyed by the description hash.
	assert.EqualValues(t, 1, atomic.LoadInt32(&backend.upsertCalls))

	results, err := idx.FindByCapabilityDescription(ctx, "summarize text", 10, 0)
	require.NoError(t, err)
	agents := make([]AgentID, 0, len(results))
	for _, r := range results {
		agents = append(agents, r.Agent)
	}
	assert.ElementsMatch(t, []AgentID{"R1", "R2"}, agents)
}

func TestSemanticIndex_DegradedModeLogsOnce(t *testing.T) {
	si := NewSemanticIndex(nil)
	ctx := context.Background()
	require.NoError(t, si.Upsert(ctx, "key-a", "summarize text"))

	_, err := si.Query(ctx, "summarize", 10)
	require.NoError(t, err)
	_, err = si.Query(ctx, "summarize", 10)
	require.NoError(t, err)
	// degradedLog is a sync.Once; this just exercises the path twice to make
	// sure repeated queries don't panic or re-trigger the warning log.
}
