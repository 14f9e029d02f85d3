package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedLoader struct {
	fakeLoader
	name   string
	script string
}

func (l *namedLoader) Name() string       { return l.name }
func (l *namedLoader) ScriptName() string { return l.script }

func newNamedEngine(name, script string) *Engine {
	return NewEngine(&namedLoader{name: name, script: script}, &fakeReporter{})
}

func TestRegistry(t *testing.T) {
	lua := newNamedEngine("lua", "plugin.lua")
	js := newNamedEngine("js", "plugin.js")

	reg, err := NewRegistry(lua, js)
	require.NoError(t, err)

	assert.Equal(t, []string{"plugin.lua", "plugin.js"}, reg.ScriptNames())
	assert.Len(t, reg.Runners(), 2)

	got, ok := reg.Get("js")
	require.True(t, ok)
	assert.Same(t, js, got)

	got, ok = reg.ForScript("plugin.lua")
	require.True(t, ok)
	assert.Same(t, lua, got)

	_, ok = reg.Get("groovy")
	assert.False(t, ok)
}

func TestRegistryDuplicate(t *testing.T) {
	_, err := NewRegistry(newNamedEngine("lua", "plugin.lua"), newNamedEngine("lua", "other.lua"))
	assert.ErrorIs(t, err, ErrDuplicateRunner)
}

func TestRegistryRunnerFor(t *testing.T) {
	lua := newNamedEngine("lua", "plugin.lua")
	js := newNamedEngine("js", "plugin.js")
	reg, err := NewRegistry(lua, js)
	require.NoError(t, err)

	dir := t.TempDir()
	writeScript(t, dir, "plugin.js", "")

	got, err := reg.RunnerFor(dir)
	require.NoError(t, err)
	assert.Same(t, js, got)

	writeScript(t, dir, "plugin.lua", "")
	got, err = reg.RunnerFor(dir)
	require.NoError(t, err)
	assert.Same(t, lua, got, "first registered runner wins")

	_, err = reg.RunnerFor(t.TempDir())
	assert.ErrorIs(t, err, ErrNoRunner)
}

func TestEngineCanRunPlugin(t *testing.T) {
	engine := newNamedEngine("lua", "plugin.lua")

	dir := t.TempDir()
	assert.False(t, engine.CanRunPlugin(dir))

	writeScript(t, dir, "plugin.lua", "")
	assert.True(t, engine.CanRunPlugin(dir))

	writeScript(t, dir, "nested/plugin.lua", "")
	assert.False(t, engine.CanRunPlugin(dir), "two entry scripts")
}
