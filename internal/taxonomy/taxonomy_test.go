package taxonomy

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrimaryNames(t *testing.T) {
	names := PrimaryNames()
	require.NotEmpty(t, names)
	assert.Contains(t, names, "Fintech")
	assert.Contains(t, names, "Other")
}

func TestIsPrimary(t *testing.T) {
	assert.True(t, IsPrimary("Fintech"))
	assert.True(t, IsPrimary("fintech"), "matching is case-insensitive")
	assert.False(t, IsPrimary("Basket Weaving"))
}

func TestPromptList(t *testing.T) {
	list := PromptList()
	require.NotEmpty(t, list)
	assert.True(t, strings.Contains(list, "Fintech (e.g. Payments"))
	// "Other" has no examples and must render bare.
	assert.True(t, strings.HasSuffix(list, "Other"))
}
