package mathutil_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/solarforge/replicator/pkg/mathutil"
)

func TestMin(t *testing.T) {
	assert.Equal(t, 2, mathutil.Min(2, 5))
	assert.Equal(t, 2, mathutil.Min(5, 2))
	assert.Equal(t, -3, mathutil.Min(-3, 0))
}

func TestMin3(t *testing.T) {
	assert.Equal(t, 1, mathutil.Min3(3, 1, 2))
	assert.Equal(t, 1, mathutil.Min3(1, 3, 2))
	assert.Equal(t, 1, mathutil.Min3(3, 2, 1))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, mathutil.Clamp(-5, 0, 10))
	assert.Equal(t, 10.0, mathutil.Clamp(15, 0, 10))
	assert.Equal(t, 5.0, mathutil.Clamp(5, 0, 10))
}
