package runner

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DirectiveToken is the text that follows the comment marker of a dependency
// directive, e.g. "-- add-to-classpath " in Lua.
const DirectiveToken = "add-to-classpath "

// Directive is one dependency line found in an entry script.
type Directive struct {
	Line     int
	Raw      string
	Resolved string
}

// Scope is the set of code roots visible to one plugin run.
type Scope struct {
	// PluginID identifies the plugin being run.
	PluginID string

	// Root is the absolute plugin folder.
	Root string

	// Script is the absolute entry script path.
	Script string

	// Entries are code roots in append order. Entries[0] is Root; the rest
	// are resolved dependency directives.
	Entries []string

	// Env is the environment used for this run.
	Env Environment
}

// Dependencies returns the entries added by directives.
func (s *Scope) Dependencies() []string {
	if len(s.Entries) <= 1 {
		return nil
	}
	return append([]string(nil), s.Entries[1:]...)
}

// Dirs returns entries that are directories.
func (s *Scope) Dirs() []string {
	var dirs []string
	for _, e := range s.Entries {
		if info, err := os.Stat(e); err == nil && info.IsDir() {
			dirs = append(dirs, e)
		}
	}
	return dirs
}

// Files returns entries that are regular files.
func (s *Scope) Files() []string {
	var files []string
	for _, e := range s.Entries {
		if info, err := os.Stat(e); err == nil && info.Mode().IsRegular() {
			files = append(files, e)
		}
	}
	return files
}

// ScanDirectives reads script line by line and returns every line starting
// with prefix. Each occurrence of prefix is removed, the rest trimmed and
// interpolated with env. Relative paths are resolved against root.
func ScanDirectives(script, root, prefix string, env Environment) ([]Directive, error) {
	f, err := os.Open(script)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var directives []Directive
	r := bufio.NewReader(f)
	line := 0
	for {
		text, err := readDirectiveLine(r, prefix)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading line %d: %w", line+1, err)
		}
		line++
		if text == "" {
			continue
		}

		raw := strings.TrimSpace(strings.ReplaceAll(text, prefix, ""))
		resolved := env.Inline(raw)
		if resolved != "" && !filepath.IsAbs(resolved) {
			resolved = filepath.Join(root, resolved)
		}
		directives = append(directives, Directive{Line: line, Raw: raw, Resolved: resolved})
	}

	return directives, nil
}

// readDirectiveLine consumes one line of any length. It returns the line
// when it starts with prefix and "" otherwise; other lines are not buffered.
func readDirectiveLine(r *bufio.Reader, prefix string) (string, error) {
	frag, more, err := r.ReadLine()
	if err != nil {
		return "", err
	}
	keep := bytes.HasPrefix(frag, []byte(prefix))
	var text []byte
	if keep {
		text = append(text, frag...)
	}
	for more {
		frag, more, err = r.ReadLine()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		if keep {
			text = append(text, frag...)
		}
	}
	return string(text), nil
}

// BuildScope assembles the scope for script. Directives pointing at missing
// paths are returned as failures and left out of the scope; a failure to
// read script is returned as the error.
func BuildScope(root, script, prefix string, env Environment) (*Scope, []*LoadingFailure, error) {
	scope := &Scope{
		Root:    root,
		Script:  script,
		Entries: []string{root},
		Env:     env,
	}

	directives, err := ScanDirectives(script, root, prefix, env)
	if err != nil {
		return nil, nil, ScanFailure(script, err)
	}

	var missing []*LoadingFailure
	for _, d := range directives {
		if d.Resolved == "" {
			missing = append(missing, MissingDependency(d.Raw))
			continue
		}
		if _, err := os.Stat(d.Resolved); err != nil {
			missing = append(missing, MissingDependency(d.Resolved))
			continue
		}
		scope.Entries = append(scope.Entries, d.Resolved)
	}

	return scope, missing, nil
}
