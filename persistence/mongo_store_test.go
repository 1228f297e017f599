package persistence

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMongoGraphDocID_NamespaceIsDisjointFromRegistry(t *testing.T) {
	// Graph ids live behind a prefix, so even a graph literally named
	// after the registry document cannot address it.
	assert.NotEqual(t, registryDocID, graphDocID(registryDocID))
	assert.False(t, strings.HasPrefix(registryDocID, graphDocPrefix))

	for _, name := range []string{"pipeline", "a-b", "__registry__"} {
		id := graphDocID(name)
		assert.True(t, strings.HasPrefix(id, graphDocPrefix))
		assert.Equal(t, name, strings.TrimPrefix(id, graphDocPrefix))
	}
}
