package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netlab/config"
)

func TestSinkWritesLines(t *testing.T) {
	CloseTraces()
	config.GlobalCfg.Trace.Dir = t.TempDir()

	s := Trace("seqnum")
	s.Line("%d", 0)
	s.Line("%d", 1)
	s.Line("%d", 31)

	buf, err := os.ReadFile(filepath.Join(config.GlobalCfg.Trace.Dir, "seqnum.log"))
	require.NoError(t, err)
	assert.Equal(t, "0\n1\n31\n", string(buf))

	// Same name resolves to the same sink.
	assert.Same(t, s, Trace("seqnum"))
}

func TestSinkTruncatesPerSession(t *testing.T) {
	CloseTraces()
	config.GlobalCfg.Trace.Dir = t.TempDir()

	Trace("ack").Line("old")
	CloseTraces()

	// A new session starts from an empty file.
	Trace("ack").Line("new")
	buf, err := os.ReadFile(filepath.Join(config.GlobalCfg.Trace.Dir, "ack.log"))
	require.NoError(t, err)
	assert.Equal(t, "new\n", string(buf))
}
