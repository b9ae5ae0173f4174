package resultrepo

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/schema"
)

func TestResultsDeletedWithTask(t *testing.T) {
	s, err := schema.Parse(&ResultPo{}, &sync.Map{}, schema.NamingStrategy{})
	require.NoError(t, err)

	rel, ok := s.Relationships.Relations["Task"]
	require.True(t, ok)
	assert.Equal(t, schema.BelongsTo, rel.Type)

	c := rel.ParseConstraint()
	require.NotNil(t, c)
	assert.Equal(t, "CASCADE", c.OnDelete)
	require.Len(t, c.ForeignKeys, 1)
	assert.Equal(t, "task_id", c.ForeignKeys[0].DBName)
	assert.Equal(t, "engine_tasks", c.ReferenceSchema.Table)
}
