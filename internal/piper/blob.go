// Copyright 2025 James Ross
package piper

import (
	"errors"
	"sync/atomic"
)

// ErrBlobAlreadyConsumed names the condition of reading a blob source past
// its final fragment. No source in this package returns it: ArraySource and
// StreamSource answer such a read with an empty IsLast fragment.
var ErrBlobAlreadyConsumed = errors.New("piper: blob source already consumed")

// Fragment is one chunk yielded while draining a BlobSource.
type Fragment struct {
	Bytes  []byte
	IsLast bool
}

// BlobSource is the sealed set of ways a Blob's bytes may be backed.
type BlobSource interface {
	isBlobSource()
}

// ArraySource holds the entire blob in memory as a single fragment.
type ArraySource struct {
	Bytes    []byte
	Mime     string
	consumed atomic.Bool
}

func (*ArraySource) isBlobSource() {}

// NextFragment returns the whole buffer once; subsequent calls report
// IsLast with no bytes, mirroring a drained stream rather than erroring,
// since callers are expected to stop after IsLast.
func (a *ArraySource) NextFragment(int) (Fragment, error) {
	if a.consumed.CompareAndSwap(false, true) {
		return Fragment{Bytes: a.Bytes, IsLast: true}, nil
	}
	return Fragment{IsLast: true}, nil
}

// StreamSource is backed by a bounded channel of fragments produced by an
// upstream node; the channel is closed after the final fragment.
type StreamSource struct {
	Fragments chan Fragment
	Mime      string
}

func (*StreamSource) isBlobSource() {}

// NextFragment blocks until the producer sends a fragment or closes the
// channel.
func (s *StreamSource) NextFragment(int) (Fragment, error) {
	frag, ok := <-s.Fragments
	if !ok {
		return Fragment{IsLast: true}, nil
	}
	return frag, nil
}

// S3Source identifies an object by bucket/key; bytes are read lazily and
// range-bounded through an objectstore.Client, never loaded eagerly here.
type S3Source struct {
	Bucket string
	Key    string
}

func (*S3Source) isBlobSource() {}
