package protoreg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFieldNumbers(t *testing.T) {
	names := []string{"tag_id", "name", "group_id", "user_id"}
	got := fieldNumbers(names)
	seen := map[int]bool{}
	for i, n := range got {
		assert.GreaterOrEqual(t, n, 1, names[i])
		assert.LessOrEqual(t, n, maxFieldNumber, names[i])
		assert.False(t, n >= reservedRangeStart && n <= reservedRangeEnd, names[i])
		assert.False(t, seen[n], "duplicate number for %s", names[i])
		seen[n] = true
	}
	assert.Equal(t, got, fieldNumbers(names))
	assert.Nil(t, fieldNumbers(nil))
}

func TestSnakeCase(t *testing.T) {
	assert.Equal(t, "file_entry", snakeCase("FileEntry"))
	assert.Equal(t, "title_map", snakeCase("titleMap"))
	assert.Equal(t, "tag_id", snakeCase("tagId"))
}
