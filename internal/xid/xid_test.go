package xid

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsPrefixedAndUnique(t *testing.T) {
	a := New("sale")
	b := New("sale")
	assert.NotEqual(t, a, b)

	rest, ok := strings.CutPrefix(a, "sale-")
	require.True(t, ok, "missing prefix in %q", a)
	_, err := uuid.Parse(rest)
	assert.NoError(t, err)
}
