package merkle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmptyTreeRootIsZeroSentinel(t *testing.T) {
	tr := BuildTree(nil)
	assert.True(t, tr.Root().IsZero())
	assert.True(t, tr.Empty())
}

func TestSingleLeafPathVerifies(t *testing.T) {
	tr := BuildTree([]Hash{leafHash("a", "1", 10)})
	p, err := tr.Path(0)
	require.NoError(t, err)
	assert.True(t, p.Verify(tr.Root()))
}

func TestOddLeafCountDuplicatesLastNode(t *testing.T) {
	leaves := []Hash{
		leafHash("a", "1", 1),
		leafHash("b", "2", 2),
		leafHash("c", "3", 3),
	}
	tr := BuildTree(leaves)
	for i := range leaves {
		p, err := tr.Path(i)
		require.NoError(t, err)
		assert.True(t, p.Verify(tr.Root()), "leaf %d should verify", i)
	}
}

func TestPathOutOfRange(t *testing.T) {
	tr := BuildTree([]Hash{leafHash("a", "1", 1)})
	_, err := tr.Path(5)
	assert.ErrorIs(t, err, ErrOrdinalOutOfRange)

	empty := BuildTree(nil)
	_, err = empty.Path(0)
	assert.ErrorIs(t, err, ErrOrdinalOutOfRange)
}

func TestPathMarshalRoundTrip(t *testing.T) {
	leaves := []Hash{
		leafHash("a", "1", 1),
		leafHash("b", "2", 2),
		leafHash("c", "3", 3),
		leafHash("d", "4", 4),
	}
	tr := BuildTree(leaves)
	p, err := tr.Path(2)
	require.NoError(t, err)

	decoded, err := UnmarshalPath(p.Marshal())
	require.NoError(t, err)
	assert.Equal(t, p, decoded)
	assert.True(t, decoded.Verify(tr.Root()))
}

func TestUnmarshalPathRejectsMalformedBytes(t *testing.T) {
	_, err := UnmarshalPath([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrMalformedPath)

	_, err = UnmarshalPath(make([]byte, 40))
	assert.ErrorIs(t, err, ErrMalformedPath)
}

func TestDifferentLeafContentChangesRoot(t *testing.T) {
	t1 := BuildTree([]Hash{leafHash("a", "1", 10)})
	t2 := BuildTree([]Hash{leafHash("a", "2", 10)})
	assert.NotEqual(t, t1.Root(), t2.Root())
}

func TestHashHexRoundTrip(t *testing.T) {
	h := leafHash("a", "1", 10)
	decoded, err := HashFromHex(h.String())
	require.NoError(t, err)
	assert.Equal(t, h, decoded)

	_, err = HashFromHex("not-hex")
	assert.ErrorIs(t, err, ErrMalformedHash)
}
