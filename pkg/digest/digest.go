// Package digest wraps streaming hash algorithms behind a single-use accumulator.
package digest

import (
	"encoding/hex"
	"hash"
)

// Digest is the finalized output of an Accumulator.
type Digest []byte

// String returns the lowercase hex encoding of d.
func (d Digest) String() string { return hex.EncodeToString(d) }

// Accumulator feeds ordered chunks into a running hash. The final digest
// depends only on the concatenated bytes, never on chunk boundaries.
// An Accumulator is owned by a single goroutine.
type Accumulator struct {
	alg  Algorithm
	h    hash.Hash
	done bool
}

// New returns an MD5 accumulator with empty state.
func New() *Accumulator {
	return &Accumulator{alg: MD5, h: newHash(MD5)}
}

// NewFor returns an accumulator for alg.
func NewFor(alg Algorithm) (*Accumulator, error) {
	parsed, err := ParseAlgorithm(string(alg))
	if err != nil {
		return nil, err
	}
	return &Accumulator{alg: parsed, h: newHash(parsed)}, nil
}

// Algorithm reports which algorithm the accumulator runs.
func (a *Accumulator) Algorithm() Algorithm { return a.alg }

// Consume appends p to the running state. Empty input is a no-op.
// Calling Consume after Finalize panics.
func (a *Accumulator) Consume(p []byte) {
	if a.done {
		panic("digest: Consume called after Finalize")
	}
	if len(p) == 0 {
		return
	}
	// hash.Hash.Write never returns an error.
	_, _ = a.h.Write(p)
}

// Finalize returns the digest and retires the accumulator.
func (a *Accumulator) Finalize() Digest {
	if a.done {
		panic("digest: Finalize called twice")
	}
	a.done = true
	sum := a.h.Sum(nil)
	a.h = nil
	return Digest(sum)
}

// Sum hashes p in one call.
func Sum(alg Algorithm, p []byte) (Digest, error) {
	acc, err := NewFor(alg)
	if err != nil {
		return nil, err
	}
	acc.Consume(p)
	return acc.Finalize(), nil
}
