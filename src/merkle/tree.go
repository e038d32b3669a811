package merkle

// Tree is an immutable binary Merkle tree built bottom-up over a fixed
// slice of leaf hashes. An odd node at any level is paired with itself,
// matching the common "duplicate last node" convention.
type Tree struct {
	leaves []Hash
}

// BuildTree constructs a Tree over leaves, in the given order. The order
// determines ordinal assignment and therefore which Path Tree.Path(i)
// returns for leaf i.
func BuildTree(leaves []Hash) *Tree {
	cp := make([]Hash, len(leaves))
	copy(cp, leaves)
	return &Tree{leaves: cp}
}

// Empty reports whether the tree has no leaves.
func (t *Tree) Empty() bool {
	return t == nil || len(t.leaves) == 0
}

// NumLeaves reports the leaf count.
func (t *Tree) NumLeaves() int {
	if t == nil {
		return 0
	}
	return len(t.leaves)
}

// Root returns the tree root, or the all-zeros sentinel when empty.
func (t *Tree) Root() Hash {
	if t.Empty() {
		return Zero
	}
	level := t.leaves
	for len(level) > 1 {
		level = nextLevel(level)
	}
	return level[0]
}

func nextLevel(level []Hash) []Hash {
	next := make([]Hash, 0, (len(level)+1)/2)
	for i := 0; i < len(level); i += 2 {
		if i+1 < len(level) {
			next = append(next, compress(level[i], level[i+1]))
		} else {
			next = append(next, compress(level[i], level[i]))
		}
	}
	return next
}

// Path is the inclusion path from a leaf to the root: the leaf hash plus
// the sequence of sibling hashes encountered on the way up, each tagged
// with whether the sibling sits to the right of the path node at that
// level (so Verify knows which side to compress on).
type Path struct {
	Leaf           Hash
	Siblings       []Hash
	SiblingOnRight []bool
}

// Path returns the inclusion path for leaf ordinal i.
func (t *Tree) Path(i int) (*Path, error) {
	if t.Empty() || i < 0 || i >= len(t.leaves) {
		return nil, ErrOrdinalOutOfRange
	}

	p := &Path{Leaf: t.leaves[i]}
	level := t.leaves
	idx := i
	for len(level) > 1 {
		var sibling Hash
		var onRight bool
		if idx%2 == 0 {
			onRight = true
			if idx+1 < len(level) {
				sibling = level[idx+1]
			} else {
				sibling = level[idx]
			}
		} else {
			onRight = false
			sibling = level[idx-1]
		}
		p.Siblings = append(p.Siblings, sibling)
		p.SiblingOnRight = append(p.SiblingOnRight, onRight)

		level = nextLevel(level)
		idx /= 2
	}
	return p, nil
}

// Verify recomputes the root implied by the path and reports whether it
// matches root. Index.FindDifferences uses it as its first check: a path
// that verifies against the local root means the key's leaf matches. A
// path that fails to verify may fail because of its own leaf or because
// of any sibling on the way up, so FindDifferences then compares the
// leaves themselves.
func (p *Path) Verify(root Hash) bool {
	cur := p.Leaf
	for i, sib := range p.Siblings {
		if p.SiblingOnRight[i] {
			cur = compress(cur, sib)
		} else {
			cur = compress(sib, cur)
		}
	}
	return cur == root
}

// Marshal serialises the path as leaf(32 bytes) followed by, for each
// level, one direction byte (0x01 = sibling on the right, 0x00 =
// sibling on the left) and the 32-byte sibling hash.
func (p *Path) Marshal() []byte {
	buf := make([]byte, 0, len(p.Leaf)+len(p.Siblings)*(1+len(Hash{})))
	buf = append(buf, p.Leaf[:]...)
	for i, sib := range p.Siblings {
		dir := byte(0)
		if p.SiblingOnRight[i] {
			dir = 1
		}
		buf = append(buf, dir)
		buf = append(buf, sib[:]...)
	}
	return buf
}

// UnmarshalPath decodes bytes produced by Path.Marshal. A length that does
// not decode to a leaf hash followed by whole (direction, sibling)
// segments is reported as ErrMalformedPath.
func UnmarshalPath(b []byte) (*Path, error) {
	const hashLen = 32
	if len(b) < hashLen || (len(b)-hashLen)%(hashLen+1) != 0 {
		return nil, ErrMalformedPath
	}

	p := &Path{}
	copy(p.Leaf[:], b[:hashLen])

	rest := b[hashLen:]
	n := len(rest) / (hashLen + 1)
	p.Siblings = make([]Hash, n)
	p.SiblingOnRight = make([]bool, n)
	for i := 0; i < n; i++ {
		off := i * (hashLen + 1)
		p.SiblingOnRight[i] = rest[off] == 1
		copy(p.Siblings[i][:], rest[off+1:off+1+hashLen])
	}
	return p, nil
}
