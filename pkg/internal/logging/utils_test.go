package logging_test

import (
	"testing"

	"github.com/4chain-ag/go-negotiate-middleware/pkg/internal/logging"
	"github.com/stretchr/testify/require"
)

func TestDefaultIfNil(t *testing.T) {
	// when:
	logger := logging.DefaultIfNil(nil)

	// then:
	require.NotNil(t, logger)
}

func TestChildOnNilLogger(t *testing.T) {
	// when:
	logger := logging.Child(nil, "handshake")

	// then:
	require.NotNil(t, logger)
}
