package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/poiesic/groundwork/loader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func findCommand(t *testing.T, app *cli.App, name string) *cli.Command {
	t.Helper()
	for _, cmd := range app.Commands {
		if cmd.Name == name {
			return cmd
		}
	}
	t.Fatalf("command %q not found", name)
	return nil
}

func writeConfig(t *testing.T, root string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "groundwork.toml")
	body := `
[storage]
backend = "badger"
in_memory = true

[ai]
provider = "ollama"
embedding_host = "http://127.0.0.1:1"
generation_host = "http://127.0.0.1:1"
embedding_model = "all-minilm"
generation_model = "llama3.1:8b"

[loader]
root = "` + filepath.ToSlash(root) + `"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestAppCommands(t *testing.T) {
	app := newApp()
	for _, name := range []string{"ingest", "reingest", "retrieve", "ask", "metrics", "count", "serve", "watch"} {
		cmd := findCommand(t, app, name)
		assert.NotNil(t, cmd.Action, name)
	}
}

func TestFlags(t *testing.T) {
	app := newApp()

	t.Run("log-level defaults to info", func(t *testing.T) {
		var levelFlag *cli.StringFlag
		for _, flag := range app.Flags {
			if f, ok := flag.(*cli.StringFlag); ok && f.Name == "log-level" {
				levelFlag = f
			}
		}
		require.NotNil(t, levelFlag)
		assert.Equal(t, "info", levelFlag.Value)
	})

	t.Run("config reads GROUNDWORK_CONFIG", func(t *testing.T) {
		var configFlag *cli.StringFlag
		for _, flag := range app.Flags {
			if f, ok := flag.(*cli.StringFlag); ok && f.Name == "config" {
				configFlag = f
			}
		}
		require.NotNil(t, configFlag)
		assert.Equal(t, []string{"GROUNDWORK_CONFIG"}, configFlag.EnvVars)
	})

	t.Run("watch debounce default", func(t *testing.T) {
		cmd := findCommand(t, app, "watch")
		var debounceFlag *cli.DurationFlag
		for _, flag := range cmd.Flags {
			if f, ok := flag.(*cli.DurationFlag); ok && f.Name == "debounce" {
				debounceFlag = f
			}
		}
		require.NotNil(t, debounceFlag)
		assert.Equal(t, defaultDebounce, debounceFlag.Value)
	})
}

func TestInvalidLogLevel(t *testing.T) {
	err := newApp().Run([]string{"groundwork", "--log-level", "loud", "count"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestQueryRequired(t *testing.T) {
	for _, name := range []string{"retrieve", "ask"} {
		err := newApp().Run([]string{"groundwork", name})
		assert.ErrorIs(t, err, errQueryRequired, name)
	}
}

func TestMissingConfigFile(t *testing.T) {
	err := newApp().Run([]string{"groundwork", "--config", filepath.Join(t.TempDir(), "absent.toml"), "count"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestCountCommand(t *testing.T) {
	cfg := writeConfig(t, t.TempDir())
	app := newApp()
	var out bytes.Buffer
	app.Writer = &out

	require.NoError(t, app.Run([]string{"groundwork", "--config", cfg, "count"}))
	assert.JSONEq(t, `{"count":0}`, out.String())
}

func TestMetricsCommand(t *testing.T) {
	cfg := writeConfig(t, t.TempDir())
	app := newApp()
	var out bytes.Buffer
	app.Writer = &out

	require.NoError(t, app.Run([]string{"groundwork", "--config", cfg, "metrics"}))
	assert.Contains(t, out.String(), `"total_requests": 0`)
}

func TestWatcherRelevant(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "docs"), 0o755))
	l, err := loader.New(root)
	require.NoError(t, err)

	w, err := newWatcher(l, time.Second, func(context.Context) {})
	require.NoError(t, err)
	defer w.fsw.Close()

	tests := []struct {
		name  string
		event fsnotify.Event
		want  bool
	}{
		{"json written", fsnotify.Event{Name: filepath.Join(root, "docs", "a.json"), Op: fsnotify.Write}, true},
		{"pdf created", fsnotify.Event{Name: filepath.Join(root, "paper.pdf"), Op: fsnotify.Create}, true},
		{"json removed", fsnotify.Event{Name: filepath.Join(root, "docs", "a.json"), Op: fsnotify.Remove}, true},
		{"chmod ignored", fsnotify.Event{Name: filepath.Join(root, "docs", "a.json"), Op: fsnotify.Chmod}, false},
		{"other file", fsnotify.Event{Name: filepath.Join(root, "notes.txt"), Op: fsnotify.Write}, false},
		{"json outside docs", fsnotify.Event{Name: filepath.Join(root, "a.json"), Op: fsnotify.Write}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, w.relevant(tt.event))
		})
	}
}

func TestWatcherDebouncesBursts(t *testing.T) {
	root := t.TempDir()
	l, err := loader.New(root)
	require.NoError(t, err)

	var calls atomic.Int32
	w, err := newWatcher(l, 50*time.Millisecond, func(context.Context) { calls.Add(1) })
	require.NoError(t, err)
	defer w.fsw.Close()

	ctx := context.Background()
	for range 5 {
		w.schedule(ctx)
	}
	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestWatcherReingestsOnChange(t *testing.T) {
	root := t.TempDir()
	docs := filepath.Join(root, "docs")
	require.NoError(t, os.MkdirAll(docs, 0o755))
	l, err := loader.New(root)
	require.NoError(t, err)

	var calls atomic.Int32
	w, err := newWatcher(l, 20*time.Millisecond, func(context.Context) { calls.Add(1) })
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.NoError(t, os.WriteFile(filepath.Join(docs, "a.json"), []byte(`{"id":"a","body":"hello"}`), 0o644))
	assert.Eventually(t, func() bool { return calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestNewWatcherRequiresLoader(t *testing.T) {
	_, err := newWatcher(nil, time.Second, func(context.Context) {})
	assert.Error(t, err)
}
