package store

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestPointIDDeterministic(t *testing.T) {
	a := PointID("https://laws-lois.justice.gc.ca/eng/acts/I-3.3/section-2.html", 0)
	b := PointID("https://laws-lois.justice.gc.ca/eng/acts/I-3.3/section-2.html", 0)
	require.Equal(t, a, b, "same url and chunk always map to the same id")

	_, err := uuid.Parse(a)
	require.NoError(t, err, "point ids are valid UUIDs")
}

func TestPointIDVariesByInput(t *testing.T) {
	base := PointID("https://example.org/page", 0)
	require.NotEqual(t, base, PointID("https://example.org/page", 1), "chunk index is part of the identity")
	require.NotEqual(t, base, PointID("https://example.org/other", 0))
}
