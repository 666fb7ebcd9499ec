package connstate_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/4chain-ag/go-negotiate-middleware/pkg/connstate"
)

type slotKey struct{}

func TestSlotValues(t *testing.T) {
	t.Run("get or create stores once", func(t *testing.T) {
		// given:
		slot := connstate.NewSlot(true)
		created := 0

		create := func() (any, error) {
			created++
			return "state", nil
		}

		// when:
		first, err := slot.GetOrCreate(slotKey{}, create)
		require.NoError(t, err)
		second, err := slot.GetOrCreate(slotKey{}, create)
		require.NoError(t, err)

		// then:
		assert.Equal(t, "state", first)
		assert.Equal(t, "state", second)
		assert.Equal(t, 1, created)
	})

	t.Run("create error stores nothing", func(t *testing.T) {
		// given:
		slot := connstate.NewSlot(true)
		createErr := errors.New("session creation failed")

		// when:
		_, err := slot.GetOrCreate(slotKey{}, func() (any, error) { return nil, createErr })

		// then:
		require.ErrorIs(t, err, createErr)
		_, ok := slot.Get(slotKey{})
		assert.False(t, ok)
	})

	t.Run("set and delete", func(t *testing.T) {
		// given:
		slot := connstate.NewSlot(true)

		// when:
		slot.Set(slotKey{}, 42)

		// then:
		v, ok := slot.Get(slotKey{})
		require.True(t, ok)
		assert.Equal(t, 42, v)

		// when:
		slot.Delete(slotKey{})

		// then:
		_, ok = slot.Get(slotKey{})
		assert.False(t, ok)
	})
}

func TestSlotClose(t *testing.T) {
	t.Run("callbacks fire exactly once", func(t *testing.T) {
		// given:
		slot := connstate.NewSlot(true)
		fired := 0
		require.NoError(t, slot.OnClose(func() { fired++ }))

		// when: the transport reports teardown twice
		slot.Close()
		slot.Close()

		// then:
		assert.Equal(t, 1, fired)
	})

	t.Run("registration after close runs synchronously", func(t *testing.T) {
		// given:
		slot := connstate.NewSlot(true)
		slot.Close()
		fired := false

		// when:
		require.NoError(t, slot.OnClose(func() { fired = true }))

		// then:
		assert.True(t, fired)
	})

	t.Run("no close notification support", func(t *testing.T) {
		// given:
		slot := connstate.NewSlot(false)

		// when:
		err := slot.OnClose(func() {})

		// then:
		require.ErrorIs(t, err, connstate.ErrNoCloseNotify)
	})
}
