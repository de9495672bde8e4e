package script

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"yqhp/taskqueue/internal/task"
)

func writeScript(t *testing.T, dir, name, src string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+Ext), []byte(src), 0o644))
}

func newObservedSource(t *testing.T, dir string, timeout time.Duration) (*Source, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return NewSource(dir, timeout, zap.New(core)), logs
}

func TestSource_LookupAndRun(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "greet", `function run(kw) { console.log("hello", kw.name); }`)

	source, logs := newObservedSource(t, dir, time.Second)
	fn, ok := source.Lookup("greet")
	require.True(t, ok)

	err := fn(context.Background(), task.Kwargs{"name": "ada"})
	require.NoError(t, err)

	entries := logs.FilterMessage("hello ada").All()
	assert.Len(t, entries, 1)
}

func TestSource_TopLevelScript(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "plain", `if (kwargs.n !== 2) { throw new Error("bad n"); }`)

	source, _ := newObservedSource(t, dir, time.Second)
	fn, ok := source.Lookup("plain")
	require.True(t, ok)

	assert.NoError(t, fn(context.Background(), task.Kwargs{"n": 2}))
	assert.Error(t, fn(context.Background(), task.Kwargs{"n": 3}))
}

func TestSource_Missing(t *testing.T) {
	source, _ := newObservedSource(t, t.TempDir(), time.Second)

	_, ok := source.Lookup("nope")
	assert.False(t, ok)

	_, ok = source.Lookup("../etc/passwd")
	assert.False(t, ok)

	_, ok = NewSource("", 0, zap.NewNop()).Lookup("anything")
	assert.False(t, ok)
}

func TestSource_CompileError(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "broken", `function (`)

	source, logs := newObservedSource(t, dir, time.Second)
	_, ok := source.Lookup("broken")

	assert.False(t, ok)
	assert.Equal(t, 1, logs.FilterMessage("load script failed").Len())
}

func TestSource_Timeout(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "spin", `while (true) {}`)

	source, _ := newObservedSource(t, dir, 50*time.Millisecond)
	fn, ok := source.Lookup("spin")
	require.True(t, ok)

	err := fn(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSource_Names(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "b_task", `1`)
	writeScript(t, dir, "a_task", `1`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("x"), 0o644))

	source, _ := newObservedSource(t, dir, time.Second)
	names, err := source.Names()
	require.NoError(t, err)
	assert.Equal(t, []string{"a_task", "b_task"}, names)
}

func TestSource_AsResolverDiscovery(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "discovered", `1`)

	source, _ := newObservedSource(t, dir, time.Second)
	resolver := task.NewResolver(task.NewRegistry(), true, source)

	fn, err := resolver.Resolve("discovered")
	require.NoError(t, err)
	assert.NotNil(t, fn)
}
