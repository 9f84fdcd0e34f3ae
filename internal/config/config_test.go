package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	c, err := Parse([]byte("devices:\n  serial:\n    port: /dev/ttyACM0\n"))
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyACM0", c.Devices.Serial.Port)
	assert.Equal(t, 9600, c.Devices.Serial.Baud)
	assert.Equal(t, 1.0, c.Dispatcher.TimeFactor)
	assert.Equal(t, time.Second, c.GreetingDuration())
	assert.Equal(t, ":7070", c.Devices.Web.Listen)
	assert.Equal(t, "info", c.Log.Level)
}

func TestParse_Values(t *testing.T) {
	yml := `
dispatcher:
  time_factor: 0.5
  greeting: ""
  greeting_duration: 2500ms
devices:
  serial:
    enable: false
  i2c:
    enable: true
    addr: 0x28
    poll_interval: 50ms
  web:
    enable: false
log:
  level: debug
  json: true
`
	c, err := Parse([]byte(yml))
	require.NoError(t, err)

	assert.Equal(t, 0.5, c.Dispatcher.TimeFactor)
	assert.Empty(t, c.Dispatcher.Greeting)
	assert.Equal(t, 2500*time.Millisecond, c.GreetingDuration())
	assert.True(t, c.Devices.I2C.Enable)
	assert.Equal(t, uint16(0x28), c.Devices.I2C.Addr)
	assert.Equal(t, 50*time.Millisecond, c.PollInterval())
	assert.True(t, c.Log.JSON)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yml  string
	}{
		{"negative time factor", "dispatcher:\n  time_factor: -1\n"},
		{"bad greeting duration", "dispatcher:\n  greeting_duration: soon\n"},
		{"bad i2c addr", "devices:\n  i2c:\n    enable: true\n    addr: 0x80\n"},
		{"nothing enabled", "devices:\n  serial:\n    enable: false\n  web:\n    enable: false\n"},
		{"not yaml", "dispatcher: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yml))
			assert.Error(t, err)
		})
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", time.Second},
		{"250ms", 250 * time.Millisecond},
		{"2s", 2 * time.Second},
		{"invalid", time.Second},
	}
	for _, tt := range tests {
		if got := ParseDuration(tt.in, time.Second); got != tt.want {
			t.Errorf("ParseDuration(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}

func TestWatch_Reload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dgtclock.yml")
	require.NoError(t, os.WriteFile(path, []byte("dispatcher:\n  time_factor: 1\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *Config, 4)
	go func() { _ = Watch(ctx, path, func(c *Config) { got <- c }) }()

	// Даём watcher'у подписаться на каталог.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("dispatcher:\n  time_factor: 0.25\n"), 0o644))

	select {
	case c := <-got:
		assert.Equal(t, 0.25, c.Dispatcher.TimeFactor)
	case <-time.After(pollInterval + 2*time.Second):
		t.Fatal("config was not reloaded")
	}
}
