package runner

import (
	"sort"
	"strings"
)

// Environment is an immutable table of variables interpolated into dependency
// directives as $NAME.
type Environment struct {
	names  []string
	values map[string]string
}

// NewEnvironment copies vars into a new Environment. Later changes to vars do
// not affect it.
func NewEnvironment(vars map[string]string) Environment {
	env := Environment{values: make(map[string]string, len(vars))}
	for k, v := range vars {
		if k == "" {
			continue
		}
		env.values[k] = v
		env.names = append(env.names, k)
	}
	sort.Strings(env.names)
	return env
}

// With returns a copy of env with name set to value.
func (env Environment) With(name, value string) Environment {
	vars := env.Map()
	vars[name] = value
	return NewEnvironment(vars)
}

// Lookup returns the value of name.
func (env Environment) Lookup(name string) (string, bool) {
	v, ok := env.values[name]
	return v, ok
}

// Names returns variable names in substitution order.
func (env Environment) Names() []string {
	return append([]string(nil), env.names...)
}

// Len returns the number of variables.
func (env Environment) Len() int {
	return len(env.names)
}

// Map returns a copy of the table.
func (env Environment) Map() map[string]string {
	m := make(map[string]string, len(env.values))
	for k, v := range env.values {
		m[k] = v
	}
	return m
}

// Inline replaces every "$NAME" in s with its value, for every variable in
// ascending name order. Each replacement works on the output of the previous
// one, so with FOO and FOOBAR defined "$FOOBAR" is rewritten through FOO.
func (env Environment) Inline(s string) string {
	for _, name := range env.names {
		s = strings.ReplaceAll(s, "$"+name, env.values[name])
	}
	return s
}
