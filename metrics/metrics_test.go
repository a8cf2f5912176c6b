package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConvertNumeric(t *testing.T) {
	for _, v := range []any{
		int(42), int8(42), int16(42), int32(42), int64(42),
		uint(42), uint8(42), uint16(42), uint32(42), uint64(42),
		float32(42), float64(42),
	} {
		assert.Equal(t, float64(42), ConvertNumeric(v), "%T", v)
	}
	assert.Equal(t, float64(1), ConvertNumeric(true))
	assert.Equal(t, float64(0), ConvertNumeric(false))
	assert.Equal(t, 0.25, ConvertNumeric(0.25))
}
