package sqlite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestVectorCodec(t *testing.T) {
	in := []float32{0.25, -1.5, 3e-7}
	assert.Equal(t, in, decodeVector(encodeVector(in)))
	assert.Len(t, encodeVector(in), 12)
	assert.Nil(t, encodeVector(nil))
	assert.Nil(t, decodeVector(nil))
}

func TestUnixNano(t *testing.T) {
	assert.Zero(t, unixNano(time.Time{}))
	assert.True(t, fromUnixNano(0).IsZero())

	ts := time.Date(2026, 10, 1, 12, 30, 0, 123, time.UTC)
	assert.True(t, ts.Equal(fromUnixNano(unixNano(ts))))
}

func TestNullableColumns(t *testing.T) {
	assert.Nil(t, nullString(""))
	assert.Equal(t, "hello", nullString("hello"))
	assert.Equal(t, 1, boolToInt(true))
	assert.Equal(t, 0, boolToInt(false))
}
