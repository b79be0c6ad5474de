package uuidx

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	id := New()
	assert.Equal(t, uuid.Version(7), id.Version())
	assert.Equal(t, uuid.RFC4122, id.Variant())
	assert.NotEqual(t, id, New())
}

func TestNewSortsByTime(t *testing.T) {
	// v7 IDs embed a millisecond timestamp, so identifiers generated in
	// sequence compare in creation order.
	a := NewString()
	b := NewString()
	assert.LessOrEqual(t, a[:8], b[:8])
}

func TestNewString(t *testing.T) {
	idStr := NewString()
	_, err := uuid.Parse(idStr)
	assert.NoError(t, err)
}
