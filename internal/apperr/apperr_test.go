package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMatchesKindSentinel(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", New(KindAuth, "login", "invalid credentials"))

	assert.True(t, errors.Is(err, ErrAuth))
	assert.False(t, errors.Is(err, ErrValidation))

	kind, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, KindAuth, kind)
	assert.Equal(t, "invalid credentials", Message(err))
	assert.Equal(t, "login: invalid credentials", New(KindAuth, "login", "invalid credentials").Error())
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := Wrap(KindNetwork, "list-broadcasts", cause)

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrNetwork)
	assert.True(t, KindNetwork.Retryable())
	assert.False(t, KindConfiguration.Retryable())
	assert.Contains(t, Message(err), "Could not reach the server")
}

func TestMessageFallsBackToErrorText(t *testing.T) {
	assert.Equal(t, "", Message(nil))
	assert.Equal(t, "boom", Message(errors.New("boom")))
}
