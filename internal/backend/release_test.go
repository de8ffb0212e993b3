package backend

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReleaseStack(t *testing.T) {
	t.Run("releases_in_reverse_order", func(t *testing.T) {
		var order []string
		var s ReleaseStack
		for _, name := range []string{"factory", "context", "converter", "encoder"} {
			s.Push(name, func() error {
				order = append(order, name)
				return nil
			})
		}
		assert.Equal(t, []string{"factory", "context", "converter", "encoder"}, s.Names())

		require.NoError(t, s.Release())
		assert.Equal(t, []string{"encoder", "converter", "context", "factory"}, order)
		assert.Zero(t, s.Len())
	})

	t.Run("second_release_is_a_no_op", func(t *testing.T) {
		calls := 0
		var s ReleaseStack
		s.Push("context", func() error {
			calls++
			return nil
		})
		require.NoError(t, s.Release())
		require.NoError(t, s.Release())
		assert.Equal(t, 1, calls)
	})

	t.Run("empty_stack", func(t *testing.T) {
		var s ReleaseStack
		assert.NoError(t, s.Release())
	})

	t.Run("failures_do_not_stop_the_unwind", func(t *testing.T) {
		errBoom := errors.New("boom")
		var released []string
		var s ReleaseStack
		s.Push("factory", func() error {
			released = append(released, "factory")
			return nil
		})
		s.Push("context", func() error {
			released = append(released, "context")
			return errBoom
		})
		s.Push("encoder", func() error {
			released = append(released, "encoder")
			return errBoom
		})

		err := s.Release()
		require.Error(t, err)
		assert.ErrorIs(t, err, errBoom)
		assert.Contains(t, err.Error(), "releasing encoder")
		assert.Contains(t, err.Error(), "releasing context")
		assert.Equal(t, []string{"encoder", "context", "factory"}, released)
	})
}
