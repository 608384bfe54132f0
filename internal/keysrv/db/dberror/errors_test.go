package dberror

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(ErrDatabase.Err(errors.New("no such table: license_keys"))))
	assert.False(t, IsTransient(ErrNotFound.Msg("license key not found")))
	assert.False(t, IsTransient(ErrAlreadyExists))
	assert.False(t, IsTransient(errors.New("unrelated")))
	assert.False(t, IsTransient(nil))

	assert.Equal(t, http.StatusNotFound, ErrNotFound.StatusCode())
	assert.Equal(t, http.StatusConflict, ErrAlreadyExists.StatusCode())
}
