package peerhealth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHealthyInitially(t *testing.T) {
	tr := New(3)
	assert.True(t, tr.Healthy())
	assert.Equal(t, 0, tr.Failures())
}

func TestBecomesUnhealthyAtThreshold(t *testing.T) {
	tr := New(2)
	tr.RecordFailure()
	assert.True(t, tr.Healthy())
	tr.RecordFailure()
	assert.False(t, tr.Healthy())
	assert.Equal(t, 2, tr.Failures())
}

func TestSuccessResetsFailures(t *testing.T) {
	tr := New(2)
	tr.RecordFailure()
	tr.RecordFailure()
	assert.False(t, tr.Healthy())
	tr.RecordSuccess()
	assert.True(t, tr.Healthy())
	assert.Equal(t, 0, tr.Failures())
}

func TestNonPositiveThresholdDefaultsToOne(t *testing.T) {
	tr := New(0)
	assert.True(t, tr.Healthy())
	tr.RecordFailure()
	assert.False(t, tr.Healthy())
}
