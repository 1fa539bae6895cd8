package protocol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollaboration_RequestResponseRoundTrip(t *testing.T) {
	a := newTestIdentity(t)
	b := newTestIdentity(t)

	cpA := NewCollaborationProtocol(a)
	req, err := cpA.FormatRequest(string(a.ID()), string(b.ID()), "summarize", "please summarize X", nil, time.Now())
	require.NoError(t, err)
	require.NoError(t, ValidateRequest(req, string(b.ID())))

	cpB := NewCollaborationProtocol(b)
	resp, err := cpB.FormatResponse(string(b.ID()), req, "here is the summary", time.Now())
	require.NoError(t, err)
	require.NoError(t, ValidateResponse(resp, req))

	assert.Equal(t, req.Metadata.RequestID, resp.Metadata.RequestID)
}

func TestCollaboration_RequestMissingCapability(t *testing.T) {
	a := newTestIdentity(t)
	b := newTestIdentity(t)

	cp := NewCollaborationProtocol(a)
	_, err := cp.FormatRequest(string(a.ID()), string(b.ID()), "", "body", nil, time.Now())
	assert.ErrorIs(t, err, ErrMissingCapabilityName)
}

func TestCollaboration_ResponseRequestIDMismatch(t *testing.T) {
	a := newTestIdentity(t)
	b := newTestIdentity(t)

	cpA := NewCollaborationProtocol(a)
	req, err := cpA.FormatRequest(string(a.ID()), string(b.ID()), "summarize", "body", nil, time.Now())
	require.NoError(t, err)

	cpB := NewCollaborationProtocol(b)
	resp, err := cpB.FormatResponse(string(b.ID()), req, "reply", time.Now())
	require.NoError(t, err)

	resp.Metadata.RequestID = "not-the-right-id"
	assert.ErrorIs(t, ValidateResponse(resp, req), ErrRequestIDMismatch)
}

func TestCollaboration_LoopDetection(t *testing.T) {
	a := newTestIdentity(t)
	b := newTestIdentity(t)
	c := newTestIdentity(t)

	cpA := NewCollaborationProtocol(a)
	req, err := cpA.FormatRequest(string(a.ID()), string(b.ID()), "task", "body", nil, time.Now())
	require.NoError(t, err)

	// Simulate the hub appending each hop as the request is forwarded: A -> B -> C.
	req.Metadata.CollaborationChain = append(req.Metadata.CollaborationChain, string(a.ID()), string(b.ID()))

	// Forwarding on to C is fine, C has not seen this request yet.
	require.NoError(t, ValidateRequest(req, string(c.ID())))

	// But forwarding back to A, who is already in the chain, must be rejected.
	err = ValidateRequest(req, string(a.ID()))
	assert.ErrorIs(t, err, ErrLoopDetected)
}
