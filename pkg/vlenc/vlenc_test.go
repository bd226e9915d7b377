package vlenc

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	values := []uint64{
		0, 1, 127, 128, 255, 256, 16383, 16384,
		1 << 32, math.MaxUint64 - 1, math.MaxUint64,
	}

	for _, v := range values {
		var buf [MaxLen64]byte

		n := PutUint64(buf[:], v)
		require.Equal(t, Len64(v), n)

		got, read, err := Uint64(buf[:n])
		require.NoError(t, err)
		assert.Equal(t, v, got)
		assert.Equal(t, n, read)
	}
}

func TestAppendUint64(t *testing.T) {
	t.Parallel()

	buf := AppendUint64(nil, 300)
	buf = AppendUint64(buf, 7)

	v1, n1, err := Uint64(buf)
	require.NoError(t, err)
	assert.Equal(t, uint64(300), v1)

	v2, _, err := Uint64(buf[n1:])
	require.NoError(t, err)
	assert.Equal(t, uint64(7), v2)
}

func TestTruncated(t *testing.T) {
	t.Parallel()

	var buf [MaxLen64]byte

	n := PutUint64(buf[:], 1<<40)

	_, _, err := Uint64(buf[:n-1])
	assert.ErrorIs(t, err, ErrTruncated)

	_, _, err = Uint64(nil)
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestOverflow(t *testing.T) {
	t.Parallel()

	buf := []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x7f}

	_, _, err := Uint64(buf)
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestBoundaryLengths(t *testing.T) {
	t.Parallel()

	cases := []struct {
		value uint64
		len   int
	}{
		{0x7f, 1},
		{0x80, 2},
		{0x3fff, 2},
		{0x4000, 3},
		{math.MaxUint64, 10},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.len, Len64(tc.value), "value %#x", tc.value)
	}
}
