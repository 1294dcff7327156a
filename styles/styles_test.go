package styles

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	for _, k := range []string{"q", "enter", "↑/↓"} {
		require.Contains(t, Key(k), k)
	}
}
