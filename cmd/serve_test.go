package cmd

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sitepipe/internal/config"
	"github.com/conneroisu/sitepipe/internal/errors"
	"github.com/conneroisu/sitepipe/internal/server"
)

// running is a CLI invocation executing in the background.
type running struct {
	t      *testing.T
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// start runs the CLI in dir in the background. The command is cancelled
// when the test ends.
func start(t *testing.T, dir string, args ...string) *running {
	t.Helper()
	prepare(t, dir, args...)

	ctx, cancel := context.WithCancel(context.Background())
	r := &running{t: t, cancel: cancel, done: make(chan struct{})}
	go func() {
		r.err = rootCmd.ExecuteContext(ctx)
		close(r.done)
	}()
	t.Cleanup(func() { _ = r.stop() })
	return r
}

// wait returns the error of a command expected to exit by itself.
func (r *running) wait() error {
	r.t.Helper()
	select {
	case <-r.done:
		return r.err
	case <-time.After(10 * time.Second):
		r.t.Fatal("command kept running")
		return nil
	}
}

// stop cancels the command and returns its error.
func (r *running) stop() error {
	r.cancel()
	select {
	case <-r.done:
		return r.err
	case <-time.After(10 * time.Second):
		r.t.Error("command did not stop after cancellation")
		return nil
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func TestLongRunningCommandsAbortOnFailedBuild(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"watch", []string{"watch"}},
		{"serve", []string{"serve", "--host", "127.0.0.1", "--port", "0"}},
		{"serve with watch", []string{"serve", "--watch", "--host", "127.0.0.1", "--port", "0"}},
		{"default command", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := newProject(t)
			writeFiles(t, dir, map[string]string{"src/js/broken.js": "function (a, {"})
			t.Setenv("SITEPIPE_SERVER_HOST", "127.0.0.1")
			t.Setenv("SITEPIPE_SERVER_PORT", "0")

			err := start(t, dir, tt.args...).wait()
			require.Error(t, err)

			te, ok := errors.AsTransform(err)
			require.True(t, ok, "got %v", err)
			assert.Equal(t, "broken.js", filepath.Base(te.File))
			assert.NoFileExists(t, filepath.Join(dir, "public", "js", "scripts.min.js"))
		})
	}
}

func TestLongRunningCommandsRejectMalformedConfig(t *testing.T) {
	for _, args := range [][]string{{"watch"}, {"serve"}, nil} {
		t.Run(strings.Join(append([]string{"sitepipe"}, args...), " "), func(t *testing.T) {
			dir := newProject(t)
			writeFiles(t, dir, map[string]string{config.DefaultFileName: "paths:\n  public: out\nstyle: [unclosed\n"})

			err := start(t, dir, args...).wait()
			require.Error(t, err)
			assert.True(t, errors.IsConfig(err), "got %v", err)
			assert.NoDirExists(t, filepath.Join(dir, "public"))
			assert.NoDirExists(t, filepath.Join(dir, "out"))
		})
	}
}

func TestWatchRebuildsChangedScripts(t *testing.T) {
	dir := newProject(t)
	bundle := filepath.Join(dir, "public", "js", "scripts.min.js")
	style := filepath.Join(dir, "public", "css", "style.min.css")

	cmd := start(t, dir, "watch")

	require.Eventually(t, func() bool {
		_, err := os.Stat(bundle)
		return err == nil
	}, 10*time.Second, 20*time.Millisecond, "initial build")

	styleInfo, err := os.Stat(style)
	require.NoError(t, err)

	// The dispatcher may still be registering watches; keep touching the
	// source until a rebuild picks it up.
	source := filepath.Join(dir, "src", "js", "a.js")
	require.Eventually(t, func() bool {
		if err := os.WriteFile(source, []byte("var changedValue = 3;"), 0o644); err != nil {
			return false
		}
		data, err := os.ReadFile(bundle)
		return err == nil && strings.Contains(string(data), "changedValue")
	}, 10*time.Second, 100*time.Millisecond, "script rebuild")

	info, err := os.Stat(style)
	require.NoError(t, err)
	assert.Equal(t, styleInfo.ModTime(), info.ModTime(), "stylesheets are not rebuilt for a script change")

	assert.NoError(t, cmd.stop())
}

func TestServeCommands(t *testing.T) {
	tests := []struct {
		name string
		args func(port int) []string
	}{
		{"serve", func(port int) []string {
			return []string{"serve", "--host", "127.0.0.1", "--port", strconv.Itoa(port)}
		}},
		{"serve with watch", func(port int) []string {
			return []string{"serve", "-w", "--host", "127.0.0.1", "-p", strconv.Itoa(port)}
		}},
		{"default command", func(int) []string { return nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := newProject(t)
			port := freePort(t)
			t.Setenv("SITEPIPE_SERVER_HOST", "127.0.0.1")
			t.Setenv("SITEPIPE_SERVER_PORT", strconv.Itoa(port))
			base := "http://127.0.0.1:" + strconv.Itoa(port)

			cmd := start(t, dir, tt.args(port)...)

			client := &http.Client{Timeout: time.Second}
			var health map[string]interface{}
			require.Eventually(t, func() bool {
				resp, err := client.Get(base + server.HealthPath)
				if err != nil {
					return false
				}
				defer resp.Body.Close()
				return resp.StatusCode == http.StatusOK && json.NewDecoder(resp.Body).Decode(&health) == nil
			}, 10*time.Second, 50*time.Millisecond, "server startup")
			assert.Equal(t, "healthy", health["status"])

			resp, err := client.Get(base + "/")
			require.NoError(t, err)
			body, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			require.NoError(t, err)
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Contains(t, string(body), `<script src="../js/scripts.min.js"></script>`)
			assert.Contains(t, string(body), server.LiveReloadPath)

			assert.NoError(t, cmd.stop())
		})
	}
}
