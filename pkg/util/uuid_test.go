package util

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNewUID(t *testing.T) {
	a, b := NewUID(), NewUID()
	assert.NotEqual(t, a, b)
	for _, uid := range []string{a, b} {
		assert.True(t, strings.HasPrefix(uid, UIDRoot))
		assert.LessOrEqual(t, len(uid), 64)
		assert.NotContains(t, uid[len(UIDRoot):], ".")
	}
}

func TestUIDFromUUID(t *testing.T) {
	assert.Equal(t, "2.25.0", UIDFromUUID(uuid.Nil))
	u := uuid.MustParse("00000000-0000-0000-0000-000000000100")
	assert.Equal(t, "2.25.256", UIDFromUUID(u))
}
