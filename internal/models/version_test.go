package models

import (
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestFile_HasPermission(t *testing.T) {
	file := File{Permissions: pq.StringArray{"messagesRead", "tabs"}}

	assert.True(t, file.HasPermission("messagesRead"))
	assert.True(t, file.HasPermission("tabs"))
	assert.False(t, file.HasPermission("sensitiveDataUpload"))

	empty := File{}
	assert.False(t, empty.HasPermission("tabs"))
}
