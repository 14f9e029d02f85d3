package runner

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const luaPrefix = "-- " + DirectiveToken

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestScanDirectives(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "plugin.lua", strings.Join([]string{
		"-- add-to-classpath /abs/one",
		"  -- add-to-classpath /indented/ignored",
		"print('x') -- add-to-classpath /trailing/ignored",
		"-- add-to-classpath    lib/two   ",
		"-- add-to-classpath $LIBS/three",
		"-- add-to-classpath /a-- add-to-classpath b",
		"-- add-to-classpath",
	}, "\n"))

	env := NewEnvironment(map[string]string{"LIBS": "/opt/libs"})
	directives, err := ScanDirectives(script, dir, luaPrefix, env)
	require.NoError(t, err)
	require.Len(t, directives, 4)

	assert.Equal(t, Directive{Line: 1, Raw: "/abs/one", Resolved: "/abs/one"}, directives[0])
	assert.Equal(t, Directive{Line: 4, Raw: "lib/two", Resolved: filepath.Join(dir, "lib/two")}, directives[1])
	assert.Equal(t, Directive{Line: 5, Raw: "$LIBS/three", Resolved: "/opt/libs/three"}, directives[2])
	assert.Equal(t, "/ab", directives[3].Raw)
}

func TestScanDirectivesLongLines(t *testing.T) {
	dir := t.TempDir()
	longPath := "/deep/" + strings.Repeat("p", 10_000)
	script := writeScript(t, dir, "plugin.lua", strings.Join([]string{
		`local s = "` + strings.Repeat("a", 2<<20) + `"`,
		"-- add-to-classpath /after/long",
		"-- add-to-classpath " + longPath,
		"print(#s)",
	}, "\n"))

	directives, err := ScanDirectives(script, dir, luaPrefix, NewEnvironment(nil))
	require.NoError(t, err)
	require.Len(t, directives, 2)
	assert.Equal(t, Directive{Line: 2, Raw: "/after/long", Resolved: "/after/long"}, directives[0])
	assert.Equal(t, 3, directives[1].Line)
	assert.Equal(t, longPath, directives[1].Raw)
}

func TestScanDirectivesLineEndings(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "plugin.lua", "-- add-to-classpath /crlf\r\nprint(1)\r\n-- add-to-classpath /last")

	directives, err := ScanDirectives(script, dir, luaPrefix, NewEnvironment(nil))
	require.NoError(t, err)
	require.Len(t, directives, 2)
	assert.Equal(t, "/crlf", directives[0].Raw)
	assert.Equal(t, Directive{Line: 3, Raw: "/last", Resolved: "/last"}, directives[1])
}

func TestScanDirectivesMissingScript(t *testing.T) {
	_, err := ScanDirectives(filepath.Join(t.TempDir(), "nope.lua"), "/", luaPrefix, NewEnvironment(nil))
	assert.Error(t, err)
}

func TestBuildScope(t *testing.T) {
	dir := t.TempDir()
	libDir := filepath.Join(dir, "libs", "json")
	require.NoError(t, os.MkdirAll(libDir, 0o755))
	libFile := writeScript(t, dir, "libs/util.lua", "return {}")

	script := writeScript(t, dir, "plugin.lua", strings.Join([]string{
		"-- add-to-classpath " + libDir,
		"-- add-to-classpath $ROOT/missing",
		"-- add-to-classpath libs/util.lua",
		"-- add-to-classpath /definitely/not/here",
	}, "\n"))

	env := NewEnvironment(map[string]string{"ROOT": dir})
	scope, missing, err := BuildScope(dir, script, luaPrefix, env)
	require.NoError(t, err)

	assert.Equal(t, []string{dir, libDir, libFile}, scope.Entries)
	assert.Equal(t, []string{libDir, libFile}, scope.Dependencies())
	assert.Equal(t, []string{dir, libDir}, scope.Dirs())
	assert.Equal(t, []string{libFile}, scope.Files())
	assert.Equal(t, script, scope.Script)

	require.Len(t, missing, 2)
	assert.Equal(t, "Couldn't find dependency '"+filepath.Join(dir, "missing")+"'", missing[0].Error())
	assert.Equal(t, "Couldn't find dependency '/definitely/not/here'", missing[1].Error())
	assert.Equal(t, StageDependencies, missing[0].Stage)
}

func TestBuildScopeUnreadableScript(t *testing.T) {
	dir := t.TempDir()
	_, _, err := BuildScope(dir, filepath.Join(dir, "plugin.lua"), luaPrefix, NewEnvironment(nil))
	require.Error(t, err)

	var lf *LoadingFailure
	require.ErrorAs(t, err, &lf)
	assert.Equal(t, StageDependencies, lf.Stage)
	assert.Contains(t, lf.Error(), "Error while looking for dependencies. Main script: ")
}
