package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	err := IO("read checkpoint", "data/categories.xml", fs.ErrPermission)
	assert.Equal(t, "io error: read checkpoint data/categories.xml: permission denied", err.Error())
	assert.ErrorIs(t, err, fs.ErrPermission)

	assert.Equal(t, "collaborator error: select stores", Collaborator("select stores", nil).Error())
}

func TestTypeOfWrapped(t *testing.T) {
	inner := Malformed("load checkpoint", "stores.xml", errors.New("unexpected EOF"))
	wrapped := fmt.Errorf("resume: %w", inner)

	assert.Equal(t, ErrorTypeMalformed, TypeOf(wrapped))
	assert.True(t, IsType(wrapped, ErrorTypeMalformed))
	assert.False(t, IsType(wrapped, ErrorTypeIO))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(errors.New("plain")))
	assert.False(t, IsType(nil, ErrorTypeUnknown))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrorTypeCollaborator))
	for _, typ := range []ErrorType{ErrorTypeIO, ErrorTypeMalformed, ErrorTypeConfig, ErrorTypeUnknown} {
		assert.False(t, IsRetryable(typ), typ)
	}
}
