package checkpoint

import (
	"fmt"
	"io"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/streamkit/mapbatch/tensor"
)

type kind int8

const (
	kindInt kind = iota + 1
	kindString
	kindTensor
)

// entry is one stored value. Exactly one payload field is meaningful,
// selected by Kind.
type entry struct {
	Kind   kind          `msgpack:"kind"`
	Int    int64         `msgpack:"int,omitempty"`
	Str    string        `msgpack:"str,omitempty"`
	Tensor *tensorRecord `msgpack:"tensor,omitempty"`
}

// tensorRecord is the wire form of a tensor. One payload slice is set,
// matching DType.
type tensorRecord struct {
	DType    int8      `msgpack:"dtype"`
	Shape    []int     `msgpack:"shape"`
	Bools    []bool    `msgpack:"bools,omitempty"`
	Int32s   []int32   `msgpack:"int32s,omitempty"`
	Int64s   []int64   `msgpack:"int64s,omitempty"`
	Float32s []float32 `msgpack:"float32s,omitempty"`
	Float64s []float64 `msgpack:"float64s,omitempty"`
	Strings  []string  `msgpack:"strings,omitempty"`
}

func recordTensor(t *tensor.Tensor) (*tensorRecord, error) {
	rec := &tensorRecord{DType: int8(t.DType()), Shape: t.Shape().Clone()}
	switch t.DType() {
	case tensor.Bool:
		rec.Bools = append([]bool(nil), t.Data().([]bool)...)
	case tensor.Int32:
		rec.Int32s = append([]int32(nil), t.Data().([]int32)...)
	case tensor.Int64:
		rec.Int64s = append([]int64(nil), t.Int64s()...)
	case tensor.Float32:
		rec.Float32s = append([]float32(nil), t.Data().([]float32)...)
	case tensor.Float64:
		rec.Float64s = append([]float64(nil), t.Float64s()...)
	case tensor.String:
		rec.Strings = append([]string(nil), t.Strings()...)
	default:
		return nil, fmt.Errorf("%s: cannot serialize %s", Namespace, t.DType())
	}
	return rec, nil
}

func (r *tensorRecord) restore() (*tensor.Tensor, error) {
	d := tensor.DType(r.DType)
	var data any
	switch d {
	case tensor.Bool:
		data = r.Bools
	case tensor.Int32:
		data = r.Int32s
	case tensor.Int64:
		data = r.Int64s
	case tensor.Float32:
		data = r.Float32s
	case tensor.Float64:
		data = r.Float64s
	case tensor.String:
		data = r.Strings
	default:
		return nil, fmt.Errorf("%w: dtype %d", ErrCorruptState, r.DType)
	}
	// msgpack decodes empty slices as nil; a zero-element tensor is valid.
	if data == nil {
		empty, err := tensor.New(d, tensor.Shape(r.Shape))
		if err != nil {
			return nil, err
		}
		return empty, nil
	}
	return tensor.FromData(d, tensor.Shape(r.Shape), data)
}

// Store is an in-memory Writer/Reader with msgpack persistence. The zero
// value is not usable; construct via NewStore.
type Store struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{entries: make(map[string]entry)}
}

func (s *Store) WriteInt(key string, v int64) error {
	s.mu.Lock()
	s.entries[key] = entry{Kind: kindInt, Int: v}
	s.mu.Unlock()
	return nil
}

func (s *Store) WriteString(key, v string) error {
	s.mu.Lock()
	s.entries[key] = entry{Kind: kindString, Str: v}
	s.mu.Unlock()
	return nil
}

func (s *Store) WriteTensor(key string, t *tensor.Tensor) error {
	rec, err := recordTensor(t)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.entries[key] = entry{Kind: kindTensor, Tensor: rec}
	s.mu.Unlock()
	return nil
}

func (s *Store) Contains(key string) bool {
	s.mu.RLock()
	_, ok := s.entries[key]
	s.mu.RUnlock()
	return ok
}

func (s *Store) lookup(key string, k kind) (entry, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return entry{}, fmt.Errorf("%w: %q", ErrKeyNotFound, key)
	}
	if e.Kind != k {
		return entry{}, fmt.Errorf("%w: %q", ErrWrongKind, key)
	}
	return e, nil
}

func (s *Store) ReadInt(key string) (int64, error) {
	e, err := s.lookup(key, kindInt)
	if err != nil {
		return 0, err
	}
	return e.Int, nil
}

func (s *Store) ReadString(key string) (string, error) {
	e, err := s.lookup(key, kindString)
	if err != nil {
		return "", err
	}
	return e.Str, nil
}

func (s *Store) ReadTensor(key string) (*tensor.Tensor, error) {
	e, err := s.lookup(key, kindTensor)
	if err != nil {
		return nil, err
	}
	if e.Tensor == nil {
		return nil, fmt.Errorf("%w: %q has no tensor payload", ErrCorruptState, key)
	}
	return e.Tensor.restore()
}

// Save encodes the store's contents to w as a single msgpack document.
func (s *Store) Save(w io.Writer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := msgpack.NewEncoder(w).Encode(s.entries); err != nil {
		return fmt.Errorf("%s: encode: %w", Namespace, err)
	}
	return nil
}

// Load replaces the store's contents with a document previously written by
// Save.
func (s *Store) Load(r io.Reader) error {
	entries := make(map[string]entry)
	if err := msgpack.NewDecoder(r).Decode(&entries); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
