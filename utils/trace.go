package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"

	"netlab/config"
)

// Sink is a named, line oriented trace file (seqnum, ack, arrival, ...).
// Records are plain UTF-8 lines, written unbuffered so they stay readable
// after a crash.
type Sink struct {
	name string

	mu sync.Mutex
	w  *lumberjack.Logger
}

var (
	sinkMu sync.Mutex
	sinks  = map[string]*Sink{}
)

// Trace returns the sink with the given logical name, creating
// <trace.dir>/<name>.log on first use. The file is truncated once per
// session.
func Trace(name string) *Sink {
	sinkMu.Lock()
	defer sinkMu.Unlock()
	if s, ok := sinks[name]; ok {
		return s
	}
	path := filepath.Join(config.GlobalCfg.Trace.Dir, name+".log")
	// Each session starts from an empty trace, like opening with mode "w".
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		Logger.Warn("failed to truncate trace file", zap.String("path", path), zap.Error(err))
	}
	s := &Sink{
		name: name,
		w: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    64,
			MaxBackups: 2,
		},
	}
	sinks[name] = s
	return s
}

// Line appends one formatted record to the sink.
func (s *Sink) Line(format string, args ...interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, format+"\n", args...); err != nil {
		Logger.Warn("trace write failed", zap.String("sink", s.name), zap.Error(err))
	}
}

// Close releases the underlying file.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Close()
}

// CloseTraces closes and forgets every open sink. Called on shutdown and
// between tests.
func CloseTraces() {
	sinkMu.Lock()
	defer sinkMu.Unlock()
	for name, s := range sinks {
		_ = s.Close()
		delete(sinks, name)
	}
}
