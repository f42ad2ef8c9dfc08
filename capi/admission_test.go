package capi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdmissionGateRejectsOverCeiling(t *testing.T) {
	gate := NewAdmissionGate(1)

	// One in-flight bulk request fills the gate.
	require.NoError(t, gate.EnterBulkDocs())

	// A concurrent revs-diff is turned away and counted.
	err := gate.EnterRevsDiff()
	require.Error(t, err)
	assert.Equal(t, ErrTooManyConcurrentRequests, err)
	assert.Equal(t, int64(1), gate.Rejections())

	// Releasing the bulk request lets the next one in.
	gate.ExitBulkDocs()
	require.NoError(t, gate.EnterRevsDiff())
	assert.Equal(t, int64(1), gate.ActiveRevsDiff())
	gate.ExitRevsDiff()
	assert.Equal(t, int64(0), gate.ActiveRevsDiff())
}

func TestAdmissionGateSharedCeiling(t *testing.T) {
	gate := NewAdmissionGate(2)

	require.NoError(t, gate.EnterBulkDocs())
	require.NoError(t, gate.EnterRevsDiff())

	// The ceiling bounds the sum of both kinds, not each kind separately.
	require.Error(t, gate.EnterBulkDocs())
	require.Error(t, gate.EnterRevsDiff())
	assert.Equal(t, int64(2), gate.Rejections())
}
