package handshake_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/4chain-ag/go-negotiate-middleware/pkg/internal/handshake"
	"github.com/4chain-ag/go-negotiate-middleware/pkg/internal/test/mocks"
	"github.com/4chain-ag/go-negotiate-middleware/pkg/provider"
)

func newState(t *testing.T, p *mocks.ScriptedProvider) *handshake.State {
	t.Helper()

	session, err := p.NewSession(context.Background())
	require.NoError(t, err)

	return handshake.New(session)
}

func TestStateCompletion(t *testing.T) {
	t.Run("completion flag latches with the identity", func(t *testing.T) {
		// given:
		identity := &provider.Identity{Name: "jdoe", Domain: "CORP"}
		p := mocks.NewScriptedProvider(
			mocks.Leg{Out: []byte("challenge")},
			mocks.Leg{Complete: true, Identity: identity},
		)
		state := newState(t, p)

		// when:
		res, err := state.Exchange(context.Background(), []byte("tok1"))

		// then:
		require.NoError(t, err)
		assert.Equal(t, provider.OutcomeContinue, res.Outcome)
		assert.False(t, state.Completed())
		assert.Nil(t, state.Identity())

		// when:
		res, err = state.Exchange(context.Background(), []byte("tok2"))

		// then:
		require.NoError(t, err)
		assert.Equal(t, provider.OutcomeComplete, res.Outcome)
		assert.True(t, state.Completed())
		assert.Same(t, identity, state.Identity())
	})

	t.Run("exchange error leaves state incomplete", func(t *testing.T) {
		// given:
		p := mocks.NewScriptedProvider(mocks.Leg{Err: assert.AnError})
		state := newState(t, p)

		// when:
		_, err := state.Exchange(context.Background(), []byte("tok1"))

		// then:
		require.ErrorIs(t, err, assert.AnError)
		assert.False(t, state.Completed())
	})
}

func TestStateRelease(t *testing.T) {
	t.Run("session and identity handle released once", func(t *testing.T) {
		// given:
		handle := &mocks.FakeHandle{}
		p := mocks.NewScriptedProvider(
			mocks.Leg{Complete: true, Identity: &provider.Identity{Name: "jdoe", Handle: handle}},
		)
		state := newState(t, p)

		_, err := state.Exchange(context.Background(), []byte("tok1"))
		require.NoError(t, err)

		// when:
		require.NoError(t, state.Release())
		require.NoError(t, state.Release())

		// then:
		assert.Equal(t, 1, p.Sessions[0].ReleaseCount)
		assert.True(t, handle.Closed)
	})

	t.Run("release before completion has no identity to free", func(t *testing.T) {
		// given:
		p := mocks.NewScriptedProvider(mocks.Leg{Out: []byte("challenge")})
		state := newState(t, p)

		// when:
		err := state.Release()

		// then:
		require.NoError(t, err)
		assert.Equal(t, 1, p.Sessions[0].ReleaseCount)
	})
}
