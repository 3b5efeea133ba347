package rules

import (
	"io"
	"testing"

	"github.com/phuslu/log"
	"github.com/stretchr/testify/require"
)

func quietLogger() *log.Logger {
	return &log.Logger{Level: log.ErrorLevel, Writer: &log.IOWriter{Writer: io.Discard}}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir(), quietLogger())
	require.NoError(t, err)
	return store
}
