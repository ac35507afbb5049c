package ids

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := New()
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestNew_Monotonic(t *testing.T) {
	a, b := New(), New()
	assert.Less(t, a, b)
}

func TestWithPrefix(t *testing.T) {
	id := WithPrefix("marker")
	assert.True(t, strings.HasPrefix(id, "marker-"))
	assert.Len(t, id, len("marker-")+26)
}
