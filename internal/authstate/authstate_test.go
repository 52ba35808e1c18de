package authstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitHeaderParsesNameAndValue(t *testing.T) {
	name, value, ok := splitHeader("Authorization: Bearer xyz")
	require.True(t, ok)
	assert.Equal(t, "Authorization", name)
	assert.Equal(t, "Bearer xyz", value)
}

func TestSplitHeaderRejectsMissingColon(t *testing.T) {
	_, _, ok := splitHeader("not-a-header")
	assert.False(t, ok)
}

func TestSplitHeaderRejectsEmptyName(t *testing.T) {
	_, _, ok := splitHeader(": value")
	assert.False(t, ok)
}

func TestToCookieParamsPreservesFields(t *testing.T) {
	params := toCookieParams([]Cookie{{Name: "session", Value: "abc", Domain: "example.test", Secure: true}})
	require.Len(t, params, 1)
	assert.Equal(t, "session", params[0].Name)
	assert.Equal(t, "abc", params[0].Value)
	assert.True(t, params[0].Secure)
}
