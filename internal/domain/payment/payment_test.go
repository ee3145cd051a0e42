package payment

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRequest() Request {
	return NewRequest(decimal.RequireFromString("12.50"), "USD", "card", "tok_visa", map[string]string{"order": "42"})
}

func TestNewRequest_NormalizesAndCopies(t *testing.T) {
	meta := map[string]string{"order": "42"}
	req := NewRequest(decimal.NewFromInt(5), " EUR ", " card ", "", meta)
	meta["order"] = "changed"

	assert.Equal(t, "eur", req.Currency)
	assert.Equal(t, "card", req.Method)
	assert.Equal(t, "42", req.Metadata["order"])
}

func TestValidateRequest(t *testing.T) {
	cases := []struct {
		name  string
		mut   func(*Request)
		field string
	}{
		{"zero amount", func(r *Request) { r.Amount = decimal.Zero }, "amount"},
		{"negative amount", func(r *Request) { r.Amount = decimal.NewFromInt(-3) }, "amount"},
		{"missing currency", func(r *Request) { r.Currency = "" }, "currency"},
		{"bad currency", func(r *Request) { r.Currency = "us" }, "currency"},
		{"missing method", func(r *Request) { r.Method = "" }, "method"},
		{"sub-cent amount", func(r *Request) { r.Amount = decimal.RequireFromString("1.005") }, "amount"},
		{"fractional yen", func(r *Request) { r.Currency = "jpy"; r.Amount = decimal.RequireFromString("10.5") }, "amount"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest()
			tc.mut(&req)

			err := ValidateRequest(req)

			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Equal(t, tc.field, vErr.Field)
		})
	}

	assert.NoError(t, ValidateRequest(validRequest()))
}

func TestValidateRefund(t *testing.T) {
	assert.Error(t, ValidateRefund(" ", decimal.NullDecimal{}))
	assert.Error(t, ValidateRefund("pi_1", decimal.NewNullDecimal(decimal.Zero)))
	assert.NoError(t, ValidateRefund("pi_1", decimal.NullDecimal{}))
	assert.NoError(t, ValidateRefund("pi_1", decimal.NewNullDecimal(decimal.NewFromInt(50))))
	assert.Error(t, ValidateRefund("pi_1", decimal.NewNullDecimal(decimal.RequireFromString("1.005"))))
}

func TestMinorUnits(t *testing.T) {
	minor, err := ToMinorUnits(decimal.RequireFromString("12.34"), "usd")
	require.NoError(t, err)
	assert.Equal(t, int64(1234), minor)

	minor, err = ToMinorUnits(decimal.NewFromInt(500), "jpy")
	require.NoError(t, err)
	assert.Equal(t, int64(500), minor)

	assert.True(t, FromMinorUnits(5000, "usd").Equal(decimal.NewFromInt(50)))
	assert.True(t, FromMinorUnits(500, "jpy").Equal(decimal.NewFromInt(500)))
}

func TestResultInvariants(t *testing.T) {
	ok := Succeeded("pi_1", "ch_1", map[string]any{DetailMethod: MethodProvider})
	assert.True(t, ok.Success)
	assert.Equal(t, "pi_1", ok.ProviderID)
	assert.Equal(t, MethodProvider, ok.Branch())

	noID := Succeeded("", "ch_1", nil)
	assert.False(t, noID.Success)
	assert.Equal(t, CodeProviderError, noID.ErrorCode)

	noCode := Failed("", "boom", nil)
	assert.Equal(t, CodeProviderError, noCode.ErrorCode)
	assert.NotNil(t, noCode.Details)
}
