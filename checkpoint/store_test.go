package checkpoint

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/streamkit/mapbatch/tensor"
)

func TestStore_ScalarsAndPresence(t *testing.T) {
	s := NewStore()

	require.NoError(t, s.WriteInt("iter:call_counter", 12))
	require.NoError(t, s.WriteString("iter:flag", ""))

	v, err := s.ReadInt("iter:call_counter")
	require.NoError(t, err)
	require.Equal(t, int64(12), v)

	require.True(t, s.Contains("iter:flag"))
	require.False(t, s.Contains("iter:missing"))

	_, err = s.ReadInt("iter:missing")
	require.ErrorIs(t, err, ErrKeyNotFound)

	_, err = s.ReadString("iter:call_counter")
	require.ErrorIs(t, err, ErrWrongKind)
}

func TestStore_TensorRoundTrip(t *testing.T) {
	s := NewStore()

	in, err := tensor.FromData(tensor.Float64, tensor.Shape{2, 2}, []float64{1, 2, 3, 4})
	require.NoError(t, err)
	require.NoError(t, s.WriteTensor("iter:output_0", in))

	out, err := s.ReadTensor("iter:output_0")
	require.NoError(t, err)
	require.True(t, in.Equal(out))
}

func TestStore_TensorKinds(t *testing.T) {
	s := NewStore()

	tensors := []*tensor.Tensor{
		tensor.Int64Vector(1, 2, 3),
		tensor.Float64Vector(0.25, -1),
		tensor.StringVector("x", "y"),
		tensor.ScalarInt64(9),
	}
	for i, in := range tensors {
		key := string(rune('a' + i))
		require.NoError(t, s.WriteTensor(key, in))
		out, err := s.ReadTensor(key)
		require.NoError(t, err)
		require.True(t, in.Equal(out), "tensor %d", i)
	}
}

func TestStore_SaveLoad(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.WriteInt("counter", 5))
	require.NoError(t, s.WriteString("marker", ""))
	in := tensor.Int64Vector(7, 8, 9)
	require.NoError(t, s.WriteTensor("data", in))

	var buf bytes.Buffer
	require.NoError(t, s.Save(&buf))

	loaded := NewStore()
	require.NoError(t, loaded.Load(&buf))
	require.Equal(t, s.Len(), loaded.Len())

	v, err := loaded.ReadInt("counter")
	require.NoError(t, err)
	require.Equal(t, int64(5), v)
	require.True(t, loaded.Contains("marker"))

	out, err := loaded.ReadTensor("data")
	require.NoError(t, err)
	require.True(t, in.Equal(out))
}

func TestStore_SaveLoad_EmptyTensor(t *testing.T) {
	s := NewStore()
	empty, err := tensor.New(tensor.Int64, tensor.Shape{0, 3})
	require.NoError(t, err)
	require.NoError(t, s.WriteTensor("empty", empty))

	var buf bytes.Buffer
	require.NoError(t, s.Save(&buf))

	loaded := NewStore()
	require.NoError(t, loaded.Load(&buf))
	out, err := loaded.ReadTensor("empty")
	require.NoError(t, err)
	require.Equal(t, tensor.Shape{0, 3}, out.Shape())
}

func TestStore_LoadCorrupt(t *testing.T) {
	loaded := NewStore()
	err := loaded.Load(bytes.NewReader([]byte{0xc1})) // reserved msgpack byte
	require.ErrorIs(t, err, ErrCorruptState)
}
