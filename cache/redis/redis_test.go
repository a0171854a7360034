package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewKey(t *testing.T) {
	key, err := NewKey(5, "attribution:last_run", "")
	assert.Nil(t, err)

	cKey, err := key.Key()
	assert.Nil(t, err)
	assert.Equal(t, "attribution:last_run:pid:5:", cKey)

	key, err = NewKey(5, "attribution:run_lock", "daily")
	assert.Nil(t, err)
	cKey, err = key.Key()
	assert.Nil(t, err)
	assert.Equal(t, "attribution:run_lock:pid:5:daily", cKey)

	_, err = NewKey(0, "prefix", "")
	assert.Equal(t, ErrorInvalidProject, err)

	_, err = NewKey(5, "", "")
	assert.Equal(t, ErrorInvalidPrefix, err)
}
