package gcv

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_BadCredentialsFile(t *testing.T) {
	_, err := New(context.Background(), filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
