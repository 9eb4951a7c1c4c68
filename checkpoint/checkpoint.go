// Package checkpoint defines the key/value store contract iterators use to
// serialize their transient state, plus a msgpack-framed Store
// implementation suitable for durable snapshots.
//
// Keys are full names produced by the iterator (prefix-scoped); values are
// int64 scalars, strings, or tensors. Booleans are conventionally encoded
// by key presence: writing an empty string under a key marks it true, and
// Contains queries it back.
package checkpoint

import (
	"errors"

	"github.com/streamkit/mapbatch/tensor"
)

const Namespace = "checkpoint"

var (
	ErrKeyNotFound  = errors.New(Namespace + ": key not found")
	ErrWrongKind    = errors.New(Namespace + ": value has a different kind")
	ErrCorruptState = errors.New(Namespace + ": corrupt serialized state")
)

// Writer records iterator state under string keys.
// Implementations must be safe for concurrent use.
type Writer interface {
	WriteInt(key string, v int64) error
	WriteString(key, v string) error
	WriteTensor(key string, t *tensor.Tensor) error
}

// Reader retrieves previously recorded iterator state.
// Implementations must be safe for concurrent use.
type Reader interface {
	Contains(key string) bool
	ReadInt(key string) (int64, error)
	ReadString(key string) (string, error)
	ReadTensor(key string) (*tensor.Tensor, error)
}
