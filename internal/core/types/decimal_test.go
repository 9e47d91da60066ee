package types

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuantity_ParseAndFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Quantity
		str  string
	}{
		{"10", NewQuantity(10), "10.0000"},
		{"2.5", Quantity(25_000), "2.5000"},
		{"0.12345", Quantity(1_234), "0.1234"},
		{"-3", NewQuantity(-3), "-3.0000"},
		{".5", Quantity(5_000), "0.5000"},
		{"+7.", NewQuantity(7), "7.0000"},
		{"1.5e2", NewQuantity(150), "150.0000"},
		{"922337203685477.5807", Quantity(math.MaxInt64), "922337203685477.5807"},
		{"-922337203685477.5807", Quantity(-math.MaxInt64), "-922337203685477.5807"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			q, err := ParseQuantity(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, q)
			assert.Equal(t, tt.str, q.String())
		})
	}
}

func TestQuantity_ParseRejects(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"only a point", "."},
		{"only a sign", "-"},
		{"sign in fraction", "1.-500"},
		{"plus in fraction", "1.+5"},
		{"double sign", "--5"},
		{"sign after sign", "+-5"},
		{"letters", "12a"},
		{"space inside", "1 000"},
		{"second point", "1.2.3"},
		{"integer part overflows after scaling", "1844674407370956"},
		{"one past the largest value", "922337203685477.5808"},
		{"large negative", "-1000000000000000"},
		{"integer part overflows int64", "99999999999999999999"},
		{"exponent out of range", "1e300"},
		{"negative exponent out of range", "-1e16"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := ParseQuantity(tt.in)
			assert.Error(t, err)
			assert.Zero(t, q)
		})
	}
}

func TestQuantity_FromFloat64Range(t *testing.T) {
	q, err := NewQuantityFromFloat64(2.25)
	require.NoError(t, err)
	assert.Equal(t, Quantity(22_500), q)

	for _, v := range []float64{1e15, -1e15, math.Inf(1), math.NaN()} {
		_, err := NewQuantityFromFloat64(v)
		assert.Error(t, err, "%v", v)
	}
}

func TestQuantity_JSONRejectsOutOfRange(t *testing.T) {
	var payload struct {
		A Quantity `json:"a"`
	}
	assert.Error(t, json.Unmarshal([]byte(`{"a": 1844674407370956}`), &payload))
	assert.Error(t, json.Unmarshal([]byte(`{"a": "1.-500"}`), &payload))
}

func TestQuantity_JSONAcceptsNumberAndString(t *testing.T) {
	var payload struct {
		A Quantity `json:"a"`
		B Quantity `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 4, "b": "1.25"}`), &payload))
	assert.Equal(t, NewQuantity(4), payload.A)
	assert.Equal(t, Quantity(12_500), payload.B)

	out, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a": 4.0, "b": 1.25}`, string(out))
}

func TestQuantity_DecimalRoundTrip(t *testing.T) {
	q := Quantity(123_456)
	assert.True(t, decimal.RequireFromString("12.3456").Equal(q.Decimal()))
	assert.Equal(t, q, NewQuantityFromDecimal(q.Decimal()))
	assert.Equal(t, Quantity(1), NewQuantityFromDecimal(decimal.RequireFromString("0.00005")))
}

func TestQuantity_Mul(t *testing.T) {
	total := NewQuantity(6).Mul(MustMoney("2.50"))
	assert.True(t, MustMoney("15").Equal(total))
}
