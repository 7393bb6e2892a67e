package digest

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/buildplan/internal/errors"
)

func TestRoundTrip(t *testing.T) {
	inputs := [][]byte{
		nil,
		{0x00},
		{0x00, 0x01},
		{0xff, 0xfe, 0x7f},
		[]byte("hello, world"),
	}

	for _, in := range inputs {
		d := FromBytes(in)
		parsed, err := Parse(d.String())
		require.NoError(t, err)
		assert.Equal(t, d, parsed)
		assert.Equal(t, len(in), parsed.Len())
	}
}

func TestParseReproducesText(t *testing.T) {
	for _, s := range []string{"", "00", "0a1b2c", "deadbeef"} {
		d, err := Parse(s)
		require.NoError(t, err)
		assert.Equal(t, s, d.String())
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"odd length", "abc"},
		{"uppercase", "DEADBEEF"},
		{"non hex", "zz"},
		{"whitespace", " 00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.text)
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.ErrCodeDigestMalformed))
		})
	}
}

func TestNoTruncation(t *testing.T) {
	a := FromBytes([]byte{0x01})
	b := FromBytes([]byte{0x01, 0x02})
	assert.False(t, a.Equal(b))
	assert.NotEqual(t, a, b)
}

func TestBytesIsACopy(t *testing.T) {
	raw := []byte{1, 2, 3}
	d := FromBytes(raw)
	raw[0] = 9

	out := d.Bytes()
	out[1] = 9
	assert.Equal(t, []byte{1, 2, 3}, d.Bytes())
}

func TestSum(t *testing.T) {
	a := SumString("a")
	assert.Equal(t, Size, a.Len())
	assert.Equal(t, a, Sum([]byte("a")))
	assert.NotEqual(t, a, SumString("b"))
	assert.False(t, a.IsZero())
	assert.True(t, Digest{}.IsZero())
}

func TestSumAllIsOrderAndGroupingSensitive(t *testing.T) {
	a, b := SumString("a"), SumString("b")
	assert.Equal(t, SumAll(a, b), SumAll(a, b))
	assert.NotEqual(t, SumAll(a, b), SumAll(b, a))
	assert.NotEqual(t, SumAll(FromBytes([]byte{1, 2}), FromBytes([]byte{3})),
		SumAll(FromBytes([]byte{1}), FromBytes([]byte{2, 3})))
}

func TestJSONText(t *testing.T) {
	d := SumString("payload")
	data, err := json.Marshal(map[string]Digest{"k": d})
	require.NoError(t, err)

	var back map[string]Digest
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, d, back["k"])

	var bad Digest
	assert.Error(t, json.Unmarshal([]byte(`"XYZ"`), &bad))
}
