package errors_test

import (
	stderrors "errors"
	"testing"

	ssfserrors "github.com/ssfs-io/ssfs/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorWithMessage(t *testing.T) {
	newErr := ssfserrors.ErrCorruptDisk.WithMessage("magic number mismatch")
	assert.Equal(
		t, "Corrupt disk image: magic number mismatch", newErr.Error(),
		"error message is wrong")
	assert.ErrorIs(t, newErr, ssfserrors.ErrCorruptDisk)
}

func TestErrorWrap(t *testing.T) {
	originalErr := stderrors.New("original error")
	newErr := ssfserrors.ErrOutOfSpace.Wrap(originalErr)
	expectedMessage := "No space left on disk: original error"

	assert.EqualValues(t, expectedMessage, newErr.Error(), "error message is wrong")
	assert.ErrorIs(t, newErr, originalErr, "original error not set as parent")
	assert.ErrorIs(t, newErr, ssfserrors.ErrOutOfSpace, "sentinel not set as parent")
}

func TestCode(t *testing.T) {
	assert.Equal(t, 0, ssfserrors.Code(nil))
	assert.Equal(t, ssfserrors.EDiskNotMounted, ssfserrors.Code(ssfserrors.ErrDiskNotMounted))
	assert.Equal(t, ssfserrors.EInvalidOffset, ssfserrors.Code(ssfserrors.ErrInvalidOffset))

	// Wrapped errors map to the same code as their sentinel.
	wrapped := ssfserrors.ErrSectorOutOfRange.WithMessage("sector 500 not in [0, 100)")
	assert.Equal(t, ssfserrors.ESectorOutOfRange, ssfserrors.Code(wrapped))

	assert.Equal(t, ssfserrors.EUnknown, ssfserrors.Code(stderrors.New("who knows")))
}
