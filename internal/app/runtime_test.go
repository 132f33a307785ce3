package app

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTestModeFlag(t *testing.T) {
	t.Setenv(testModeEnv, "")
	RefreshTestMode()
	require.False(t, InTestMode())

	t.Setenv(testModeEnv, "1")
	RefreshTestMode()
	require.True(t, InTestMode())

	// Anything other than "1" leaves the flag off.
	t.Setenv(testModeEnv, "true")
	RefreshTestMode()
	require.False(t, InTestMode())

	t.Setenv(testModeEnv, "")
	RefreshTestMode()
}
