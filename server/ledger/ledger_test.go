package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNop(t *testing.T) {
	ended, err := Nop{}.GameEnded(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, ended)
}

func TestEndedKey(t *testing.T) {
	assert.Equal(t, "bidwar:game:42:ended", EndedKey(42))
}
