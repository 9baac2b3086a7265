package util

import (
	"crypto/sha1"
	"encoding"
	"hash"
)

// SumS1 computes the DUCO-S1 digest of data in one shot.
func SumS1(data []byte) [HashSize]byte {
	return sha1.Sum(data)
}

// Engine is an incremental DUCO-S1 hasher. A fixed prefix is absorbed once by
// Prime; every Sum restores that state instead of re-hashing the prefix.
type Engine struct {
	h      hash.Hash
	primed []byte
}

// NewEngine creates an engine with an empty prefix.
func NewEngine() *Engine {
	return &Engine{h: sha1.New()}
}

// Prime resets the engine and absorbs prefix. Subsequent Sum calls start from
// the resulting state.
func (e *Engine) Prime(prefix []byte) {
	e.h.Reset()
	e.h.Write(prefix)
	// sha1's digest always implements BinaryMarshaler; the error is nil.
	state, _ := e.h.(encoding.BinaryMarshaler).MarshalBinary()
	e.primed = state
}

// Sum restores the primed state, absorbs suffix and writes the digest to out.
func (e *Engine) Sum(suffix []byte, out *[HashSize]byte) {
	if e.primed == nil {
		e.h.Reset()
	} else {
		_ = e.h.(encoding.BinaryUnmarshaler).UnmarshalBinary(e.primed)
	}
	e.h.Write(suffix)
	e.h.Sum(out[:0])
}
