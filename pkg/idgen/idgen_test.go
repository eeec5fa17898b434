package idgen_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/solarforge/replicator/pkg/idgen"
)

func TestModuleInstanceID_IncludesTypeAndIndex(t *testing.T) {
	id := idgen.ModuleInstanceID("SMELTER", 3)
	assert.True(t, strings.HasPrefix(id, "SMELTER-3-"))
}

func TestModuleInstanceID_UniqueAcrossCalls(t *testing.T) {
	a := idgen.ModuleInstanceID("SMELTER", 0)
	b := idgen.ModuleInstanceID("SMELTER", 0)
	assert.NotEqual(t, a, b)
}

func TestModuleInstanceID_HandlesNegativeIndex(t *testing.T) {
	id := idgen.ModuleInstanceID("SMELTER", -1)
	assert.True(t, strings.HasPrefix(id, "SMELTER--1-"))
}
