package model

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorTaxonomy_Detection(t *testing.T) {
	de := DataErrorf("density: estimate", "2 points below minimum of %d", 3)
	ge := GeometryErrorf("build", "need at least 3 distinct points")
	se := SelectionErrorf(4, "no candidate qualified")
	ce := ConfigErrorf("weights", "must sum to 1")

	assert.True(t, IsDataError(de))
	assert.True(t, IsGeometryError(ge))
	assert.True(t, IsSelectionError(se))
	assert.True(t, IsConfigError(ce))

	// Each detector matches only its own type.
	assert.False(t, IsDataError(ge))
	assert.False(t, IsGeometryError(se))
	assert.False(t, IsSelectionError(ce))
	assert.False(t, IsConfigError(de))
}

func TestErrorTaxonomy_DetectsWrapped(t *testing.T) {
	inner := DataErrorf("listings", "no valid listings")
	wrapped := eris.Wrap(inner, "score")

	assert.True(t, IsDataError(wrapped))
	assert.False(t, IsDataError(nil))
}

func TestDataError_Message(t *testing.T) {
	err := DataErrorf("mxi", "no listings to score")
	require.EqualError(t, err, "mxi: no listings to score")
	assert.Error(t, err.Unwrap())
}

func TestSelectionError_CarriesCandidateCount(t *testing.T) {
	err := SelectionErrorf(3, "all rejected")
	assert.Equal(t, 3, err.Candidates)
}
