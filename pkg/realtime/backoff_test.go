package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBackoff(t *testing.T) {
	max := 30 * time.Second

	require.Equal(t, time.Duration(0), backoff(0, max))
	require.Equal(t, time.Duration(0), backoff(-1, max))

	require.Equal(t, 1*time.Second, backoff(1, max))
	require.Equal(t, 2*time.Second, backoff(2, max))
	require.Equal(t, 4*time.Second, backoff(3, max))
	require.Equal(t, 16*time.Second, backoff(5, max))

	require.Equal(t, max, backoff(6, max))
	require.Equal(t, max, backoff(60, max))
}
