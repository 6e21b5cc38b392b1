package config

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
)

// projectConfig holds the top level settings read from netlab.json.
type projectConfig struct {
	Log       log       `json:"log"`
	Trace     trace     `json:"trace"`
	Transport transport `json:"transport"`
}

type log struct {
	Level string `json:"level"`
	Path  string `json:"path"`
}

// trace configures the plain-line sinks (seqnum, ack, arrival, ...).
type trace struct {
	Dir string `json:"dir"`
}

// transport carries the Go-Back-N tunables. Addresses and ports always
// come from the command line, never from here.
type transport struct {
	WindowSize int `json:"window_size"`
	SeqModulo  int `json:"seq_modulo"`
	MaxData    int `json:"max_data"`
	TimeoutMs  int `json:"timeout_ms"`
	BackoffMs  int `json:"backoff_ms"`
}

// GlobalCfg points at the configuration currently in effect.
var GlobalCfg *projectConfig

func init() {
	GlobalCfg = defaults()

	// The config file path can be overridden through the environment.
	path := os.Getenv("NETLAB_CONFIG")
	if path == "" {
		path = "netlab.json"
	}
	buf, err := ioutil.ReadFile(path)
	if err != nil {
		// Every binary must be runnable with positional args alone,
		// so a missing file just keeps the defaults.
		return
	}
	if err := json.Unmarshal(buf, GlobalCfg); err != nil {
		fmt.Printf("failed to load %s: %s\n", path, err.Error())
	}
	if err := GlobalCfg.verify(); err != nil {
		fmt.Printf("verify config failed: %s\n", err.Error())
	}
}

// Reload reads the configuration from the given path, fills defaults and
// verifies it before swapping it in.
func Reload(path string) error {
	buf, err := ioutil.ReadFile(path)
	if err != nil {
		return err
	}
	cfg := defaults()
	if err := json.Unmarshal(buf, cfg); err != nil {
		return err
	}
	if err := cfg.verify(); err != nil {
		return err
	}
	GlobalCfg = cfg
	return nil
}

func defaults() *projectConfig {
	return &projectConfig{
		Log: log{
			Level: "info",
			Path:  "netlab.log",
		},
		Trace: trace{
			Dir: ".",
		},
		Transport: transport{
			WindowSize: 10,
			SeqModulo:  32,
			MaxData:    500,
			TimeoutMs:  100,
			BackoffMs:  100,
		},
	}
}

// verify validates the settings and fills zero values back in.
func (c *projectConfig) verify() error {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Path == "" {
		c.Log.Path = "netlab.log"
	}
	if c.Trace.Dir == "" {
		c.Trace.Dir = "."
	}
	t := &c.Transport
	if t.WindowSize == 0 {
		t.WindowSize = 10
	}
	if t.SeqModulo == 0 {
		t.SeqModulo = 32
	}
	if t.MaxData == 0 {
		t.MaxData = 500
	}
	if t.TimeoutMs == 0 {
		t.TimeoutMs = 100
	}
	if t.BackoffMs == 0 {
		t.BackoffMs = 100
	}
	if t.WindowSize < 1 {
		return fmt.Errorf("invalid window_size %d", t.WindowSize)
	}
	// The window must stay below the sequence space or old and new
	// packets become indistinguishable after a wrap.
	if t.WindowSize >= t.SeqModulo {
		return fmt.Errorf("window_size %d must be smaller than seq_modulo %d", t.WindowSize, t.SeqModulo)
	}
	if t.MaxData < 1 {
		return fmt.Errorf("invalid max_data %d", t.MaxData)
	}
	return nil
}
