package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsHidden(t *testing.T) {
	hidden := []string{"pg_catalog", "pg_toast", "information_schema", "auth"}
	for _, name := range hidden {
		assert.True(t, isHidden(name), "schema %q must stay out of the snapshot", name)
	}

	exposed := []string{"public", "api", "sales"}
	for _, name := range exposed {
		assert.False(t, isHidden(name), "schema %q should be introspected", name)
	}
}
