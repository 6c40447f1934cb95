package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasCode(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")

	t.Run("matches outer code", func(t *testing.T) {
		err := Wrap(cause, CodeUnavailable, "resolver unreachable")
		assert.True(t, HasCode(err, CodeUnavailable))
		assert.False(t, HasCode(err, CodeInternal))
		assert.ErrorIs(t, err, cause)
	})

	t.Run("matches nested code through fmt wrapping", func(t *testing.T) {
		inner := New(CodeConflict, "already pending")
		outer := fmt.Errorf("anchor: %w", Wrap(inner, CodeInternal, "submit"))
		assert.True(t, HasCode(outer, CodeInternal))
		assert.True(t, HasCode(outer, CodeConflict))
	})

	t.Run("plain errors have no code", func(t *testing.T) {
		assert.False(t, HasCode(cause, CodeInternal))
		assert.Equal(t, CodeInternal, CodeOf(cause))
		assert.Empty(t, MessageOf(cause))
	})
}
