package secure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecureBufferRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "text", data: "super-secret-data"},
		{name: "binary", data: string([]byte{0x00, 0xFF, 0x10, 0x20})},
		{name: "empty", data: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := NewSecureBuffer([]byte(tt.data))
			assert.Equal(t, len(tt.data), buf.Len())

			got, err := buf.Bytes()
			require.NoError(t, err)
			assert.Equal(t, tt.data, string(got))

			// Reads are repeatable.
			got, err = buf.Bytes()
			require.NoError(t, err)
			assert.Equal(t, tt.data, string(got))
		})
	}
}

func TestSecureBufferWipesSource(t *testing.T) {
	src := []byte("wipe-me")
	buf := NewSecureBuffer(src)

	assert.NotEqual(t, "wipe-me", string(src))

	got, err := buf.Bytes()
	require.NoError(t, err)
	assert.Equal(t, "wipe-me", string(got))
}

func TestSecureBufferReturnsCopies(t *testing.T) {
	buf := NewSecureBuffer([]byte("original"))

	first, err := buf.Bytes()
	require.NoError(t, err)
	first[0] = 'X'

	second, err := buf.Bytes()
	require.NoError(t, err)
	assert.Equal(t, "original", string(second))
}

func TestSecureBufferDestroy(t *testing.T) {
	buf := NewSecureBuffer([]byte("gone"))
	buf.Destroy()
	buf.Destroy()

	_, err := buf.Bytes()
	assert.ErrorIs(t, err, ErrDestroyed)
}
