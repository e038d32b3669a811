package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNowMillisIsMonotonicallyNonDecreasing(t *testing.T) {
	a := NowMillis()
	b := NowMillis()
	assert.LessOrEqual(t, a, b)
}

func TestNodeIDIsHexAndLikelyUnique(t *testing.T) {
	a := NodeID()
	b := NodeID()
	assert.Len(t, a, 16)
	assert.NotEqual(t, a, b)
}

func TestNextConnIDIncrements(t *testing.T) {
	a := NextConnID()
	b := NextConnID()
	assert.Less(t, a, b)
}
