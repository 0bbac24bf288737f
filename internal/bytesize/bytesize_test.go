package bytesize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseByteSize(t *testing.T) {
	tests := []struct {
		in      string
		want    ByteSize
		wantErr bool
	}{
		{"1024", 1024, false},
		{"0", 0, false},
		{"1MiB", MiB, false},
		{"1Mi", MiB, false},
		{"64ki", 64 * KiB, false},
		{" 2 GiB ", 2 * GiB, false},
		{"500KB", 500 * KB, false},
		{"1.5Mi", MiB + MiB/2, false},
		{"10b", 10, false},
		{"", 0, true},
		{"   ", 0, true},
		{"abc", 0, true},
		{"10XB", 0, true},
		{"-1", 0, true},
		{"99999999999Ti", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseByteSize(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTextRoundTrip(t *testing.T) {
	var b ByteSize
	require.NoError(t, b.UnmarshalText([]byte("4MiB")))
	assert.Equal(t, 4*MiB, b)

	text, err := b.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "4MiB", string(text))

	assert.Error(t, b.UnmarshalText([]byte("four")))
	assert.Equal(t, 4*MiB, b, "failed decode leaves value untouched")
}

func TestString(t *testing.T) {
	assert.Equal(t, "512B", ByteSize(512).String())
	assert.Equal(t, "1KiB", KiB.String())
	assert.Equal(t, "1.50MiB", (MiB + MiB/2).String())
	assert.Equal(t, "3GiB", (3 * GiB).String())
	assert.Equal(t, "2TiB", (2 * TiB).String())
}

func TestConversions(t *testing.T) {
	assert.Equal(t, uint64(1024), KiB.Uint64())
	assert.Equal(t, 1024, KiB.Int())
	assert.Equal(t, int(^uint(0)>>1), ByteSize(^uint64(0)).Int())
}
