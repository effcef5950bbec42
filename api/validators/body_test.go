package validators

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/telcobill-backend/pkg/errors"
)

type rechargeBody struct {
	AmountMinor int64    `json:"amount_minor" validate:"gt=0"`
	Countries   []string `json:"countries" validate:"omitempty,dive,alpha2_country"`
}

func decode(t *testing.T, body string) (rechargeBody, *pkgerrors.Error) {
	t.Helper()
	req := httptest.NewRequest("POST", "/", strings.NewReader(body))
	var dest rechargeBody
	err := DecodeJSONBody(req, &dest)
	if err == nil {
		return dest, nil
	}
	var typed *pkgerrors.Error
	require.True(t, errors.As(err, &typed), "expected typed error, got %T", err)
	return dest, typed
}

func TestDecodeJSONBodyAcceptsValidPayload(t *testing.T) {
	dest, err := decode(t, `{"amount_minor": 29900, "countries": ["ae", "SG"]}`)
	require.Nil(t, err)
	assert.EqualValues(t, 29900, dest.AmountMinor)
}

func TestDecodeJSONBodyReportsFieldPaths(t *testing.T) {
	_, err := decode(t, `{"amount_minor": 0, "countries": ["UAE"]}`)
	require.NotNil(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, err.Code())
	details, ok := err.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "must be greater than 0", details["amount_minor"])
	assert.Equal(t, "must be a two-letter country code", details["countries[0]"])
}

func TestCountryCodesAreCaseInsensitiveButMustExist(t *testing.T) {
	_, err := decode(t, `{"amount_minor": 1, "countries": [" sg ", "zz"]}`)
	require.NotNil(t, err)
	details, ok := err.Details().(map[string]string)
	require.True(t, ok)
	assert.NotContains(t, details, "countries[0]")
	assert.Equal(t, "must be a two-letter country code", details["countries[1]"])
}

func TestDecodeJSONBodyRejectsUnknownAndTrailingData(t *testing.T) {
	_, err := decode(t, `{"amount_minor": 1, "plan": "x"}`)
	require.NotNil(t, err)

	_, err = decode(t, `{"amount_minor": 1}{"amount_minor": 2}`)
	require.NotNil(t, err)
	assert.Contains(t, err.Error(), "single JSON object")
}

func TestDecodeJSONBodyRejectsEmptyAndOversized(t *testing.T) {
	_, err := decode(t, ``)
	require.NotNil(t, err)
	assert.Contains(t, err.Error(), "required")

	huge := `{"amount_minor": 1, "countries": ["` + strings.Repeat("a", MaxBodyBytes) + `"]}`
	_, err = decode(t, huge)
	require.NotNil(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestSanitizeTruncatesRunes(t *testing.T) {
	assert.Equal(t, "mumbaí", sanitize("  mumbaí north ", 6))
	assert.Equal(t, "pune", sanitize(" pune ", 0))
}
