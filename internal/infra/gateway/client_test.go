package gateway

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTemporary(t *testing.T) {
	//ネットワーク障害と5xxだけ再試行する
	assert.True(t, IsTemporary(errors.New("connection refused")))
	assert.True(t, IsTemporary(&APIError{StatusCode: 500, Message: "internal"}))
	assert.True(t, IsTemporary(&APIError{StatusCode: 503, Message: "unavailable"}))

	assert.False(t, IsTemporary(&APIError{StatusCode: 400, Message: "bad request"}))
	assert.False(t, IsTemporary(&APIError{StatusCode: 404, Message: "not found"}))
	assert.False(t, IsTemporary(nil))
}
