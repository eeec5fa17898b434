package resourcecat_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarforge/replicator/internal/domain/resourcecat"
)

func TestNewResource_Valid(t *testing.T) {
	// Act
	r, err := resourcecat.NewResource("FE_ORE", resourcecat.KindMaterial, 1.0, 2.5, "raw iron ore")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "FE_ORE", r.Symbol())
	assert.Equal(t, resourcecat.KindMaterial, r.Kind())
	assert.Equal(t, 1.0, r.UnitVolume())
	assert.Equal(t, 2.5, r.UnitWeight())
}

func TestNewResource_RejectsEmptySymbol(t *testing.T) {
	_, err := resourcecat.NewResource("", resourcecat.KindMaterial, 1, 1, "")
	assert.Error(t, err)
}

func TestNewResource_RejectsNegativeDimensions(t *testing.T) {
	_, err := resourcecat.NewResource("FE_ORE", resourcecat.KindMaterial, -1, 1, "")
	assert.Error(t, err)

	_, err = resourcecat.NewResource("FE_ORE", resourcecat.KindMaterial, 1, -1, "")
	assert.Error(t, err)
}

func TestKind_String(t *testing.T) {
	cases := map[resourcecat.Kind]string{
		resourcecat.KindMaterial: "material",
		resourcecat.KindSoftware: "software",
		resourcecat.KindEnergy:   "energy",
	}
	for kind, want := range cases {
		assert.Equal(t, want, kind.String())
	}
}

func TestCatalog_RegisterAndLookup(t *testing.T) {
	// Arrange
	cat := resourcecat.NewCatalog()
	r, err := resourcecat.NewResource("FE_ORE", resourcecat.KindMaterial, 1, 1, "")
	require.NoError(t, err)

	// Act
	err = cat.Register(r)
	require.NoError(t, err)

	// Assert
	found, ok := cat.Lookup("FE_ORE")
	require.True(t, ok)
	assert.Equal(t, r, found)
	assert.Equal(t, 1, cat.Len())
	assert.ElementsMatch(t, []string{"FE_ORE"}, cat.Symbols())
}

func TestCatalog_RegisterRejectsDuplicateSymbol(t *testing.T) {
	cat := resourcecat.NewCatalog()
	r, _ := resourcecat.NewResource("FE_ORE", resourcecat.KindMaterial, 1, 1, "")
	require.NoError(t, cat.Register(r))

	err := cat.Register(r)
	assert.Error(t, err)
}

func TestCatalog_LookupMissing(t *testing.T) {
	cat := resourcecat.NewCatalog()
	_, ok := cat.Lookup("NOPE")
	assert.False(t, ok)
}

func TestCatalog_MustLookupPanicsOnMissing(t *testing.T) {
	cat := resourcecat.NewCatalog()
	assert.Panics(t, func() {
		cat.MustLookup("NOPE")
	})
}
