package chat

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadScript(t *testing.T) {
	script := "# warm up\ncodes for doc 1, 2, and 3\n\n   \nexport to csv\n"
	lines, err := ReadScript(strings.NewReader(script))
	require.NoError(t, err)
	assert.Equal(t, []string{"codes for doc 1, 2, and 3", "export to csv"}, lines)
}

func TestReadScriptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script.txt")
	require.NoError(t, os.WriteFile(path, []byte("vitals for doc 1\n"), 0o644))

	lines, err := ReadScriptFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"vitals for doc 1"}, lines)

	_, err = ReadScriptFile(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestReplay(t *testing.T) {
	ex := &fakeExtractor{}
	svc, _ := newService(t, ex, Options{})

	exchanges := svc.Replay(context.Background(), "replay", []string{"codes for doc 1, 2, and 3", "export to csv"})
	require.Len(t, exchanges, 2)
	assert.Equal(t, "export to csv", exchanges[1].Utterance)
	assert.True(t, strings.HasPrefix(exchanges[1].Response, "Case,"))
	assert.EqualValues(t, 1, ex.calls.Load())
}

func TestReplay_Cancelled(t *testing.T) {
	svc, _ := newService(t, &fakeExtractor{}, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Empty(t, svc.Replay(ctx, "replay", []string{"codes for doc 1"}))
}
