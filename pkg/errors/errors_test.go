package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloneKeepsIdentity(t *testing.T) {
	cloned := Clone(ErrValidation, "username is required")

	assert.Equal(t, "username is required", cloned.Message)
	assert.Equal(t, ErrValidation.Code, cloned.Code)
	assert.True(t, errors.Is(cloned, ErrValidation))
	assert.False(t, errors.Is(cloned, ErrAuthFailure))
	assert.Equal(t, "validation failed", ErrValidation.Message)
}

func TestWrapUnwrapsCause(t *testing.T) {
	cause := fmt.Errorf("dial tcp: timeout")
	err := Wrap(cause, ErrFetchFailure.Code, ErrFetchFailure.Status, "upstream unreachable")

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrFetchFailure)
	assert.Equal(t, "upstream unreachable: dial tcp: timeout", err.Error())
}

func TestFromErrorDefaultsToInternal(t *testing.T) {
	assert.Nil(t, FromError(nil))

	appErr := FromError(errors.New("boom"))
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)

	wrapped := fmt.Errorf("outer: %w", ErrNotFound)
	assert.Equal(t, ErrNotFound, FromError(wrapped))
}
