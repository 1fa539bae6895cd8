package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentfabric/fabric/identity"
)

func newTestRef(t *testing.T, name, description string) AgentRef {
	t.Helper()
	id, err := identity.CreateKeyBased()
	require.NoError(t, err)

	return AgentRef{
		Identity: id,
		Metadata: AgentMetadata{
			AgentID:   id.ID(),
			AgentType: AgentTypeAI,
			Capabilities: []Capability{
				{Name: name, Description: description},
			},
		},
	}
}

func TestRegistry_ExactCapabilityLookup(t *testing.T) {
	r := New(nil)
	ctx := context.Background()

	r1 := newTestRef(t, "summarize", "produce concise summaries of long text")
	r2 := newTestRef(t, "translate", "translate between English and Spanish")

	_, err := r.Register(ctx, r1)
	require.NoError(t, err)
	_, err = r.Register(ctx, r2)
	require.NoError(t, err)

	found := r.GetByCapability("summarize")
	require.Len(t, found, 1)
	assert.Equal(t, r1.Metadata.AgentID, found[0].AgentID)

	assert.Empty(t, r.GetByCapability("nope"))
}

func TestRegistry_SemanticDegradedModeRanksCloserMatchFirst(t *testing.T) {
	r := New(nil)
	ctx := context.Background()

	r1 := newTestRef(t, "summarize", "produce concise summaries of long text")
	r2 := newTestRef(t, "translate", "translate between English and Spanish")

	_, err := r.Register(ctx, r1)
	require.NoError(t, err)
	_, err = r.Register(ctx, r2)
	require.NoError(t, err)

	results, err := r.GetByCapabilityDescription(ctx, "shorten a document", DescriptionSearchOptions{Limit: 2}, nil)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, r1.Metadata.AgentID, identity.AgentID(results[0].Agent))
	if len(results) > 1 {
		assert.Greater(t, results[0].Score, results[1].Score)
	}
}

func TestRegistry_RegisterUnregisterRegisterIsIdempotent(t *testing.T) {
	r := New(nil)
	ctx := context.Background()

	ref := newTestRef(t, "summarize", "produce concise summaries of long text")

	_, err := r.Register(ctx, ref)
	require.NoError(t, err)
	r.Unregister(ref.Metadata.AgentID)
	_, err = r.Register(ctx, ref)
	require.NoError(t, err)

	reg, ok := r.Get(ref.Metadata.AgentID)
	require.True(t, ok)
	assert.Equal(t, ref.Metadata.AgentID, reg.AgentID)
	assert.Len(t, r.GetByCapability("summarize"), 1)
}

func TestRegistry_DuplicateRegisterFails(t *testing.T) {
	r := New(nil)
	ctx := context.Background()
	ref := newTestRef(t, "summarize", "produce concise summaries of long text")

	_, err := r.Register(ctx, ref)
	require.NoError(t, err)

	_, err = r.Register(ctx, ref)
	assert.ErrorIs(t, err, ErrAlreadyRegistered)
}

func TestRegistry_UnverifiedIdentityRejected(t *testing.T) {
	r := New(nil)
	ctx := context.Background()

	ref := AgentRef{
		Identity: nil,
		Metadata: AgentMetadata{AgentID: "did:key:bogus"},
	}
	_, err := r.Register(ctx, ref)
	assert.ErrorIs(t, err, ErrUnverifiedIdentity)
}

func TestRegistry_IsActiveReflectsLivenessWindow(t *testing.T) {
	r := New(nil)
	ctx := context.Background()
	ref := newTestRef(t, "summarize", "summaries")

	_, err := r.Register(ctx, ref)
	require.NoError(t, err)
	assert.True(t, r.IsActive(ref.Metadata.AgentID))

	r.SetLivenessWindow(0)
	assert.False(t, r.IsActive(ref.Metadata.AgentID))

	r.Touch(ref.Metadata.AgentID)
	r.SetLivenessWindow(DefaultLivenessWindow)
	assert.True(t, r.IsActive(ref.Metadata.AgentID))
}

func TestRegistry_GetByOrganization(t *testing.T) {
	r := New(nil)
	ctx := context.Background()

	ref := newTestRef(t, "summarize", "summaries")
	ref.Metadata.OrganizationID = "org-1"
	_, err := r.Register(ctx, ref)
	require.NoError(t, err)

	found := r.GetByOrganization("org-1")
	require.Len(t, found, 1)
	assert.Empty(t, r.GetByOrganization("org-2"))
}
