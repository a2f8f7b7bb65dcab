package archive

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashEmail(t *testing.T) {
	h := HashEmail("Ada@Example.com ")
	assert.Len(t, h, 64)
	assert.Equal(t, h, HashEmail("ada@example.com"))
	assert.NotEqual(t, h, HashEmail("bob@example.com"))
	assert.NotContains(t, h, "ada")
}
