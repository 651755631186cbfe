package errors

import (
	"fmt"
	"io"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestCodesSurviveWrapping(t *testing.T) {
	err := NewFormatError("header too short", io.ErrUnexpectedEOF)

	assert.True(t, IsFormat(err))
	assert.False(t, IsIO(err))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	wrapped := pkgerrors.Wrap(err, "load index failed")
	assert.True(t, IsFormat(wrapped))

	wrapped = fmt.Errorf("startup: %w", NewIOError("open quotes", wrapped))
	assert.True(t, IsIO(wrapped))
	assert.True(t, IsFormat(wrapped))
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "ErrEmptyStore: no quotes loaded", ErrEmptyStore.Error())
	assert.Equal(t, "ErrBind: listen tcp (cause: boom)", NewBindError("listen tcp", fmt.Errorf("boom")).Error())
	assert.True(t, IsEmptyStore(fmt.Errorf("x: %w", ErrEmptyStore)))
	assert.False(t, IsBind(nil))
}
