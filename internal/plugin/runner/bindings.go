package runner

// ThisScript is the reserved binding holding the entry script path.
const ThisScript = "THIS_SCRIPT"

// Bindings are named host values injected into a script's scope.
type Bindings map[string]any

// Clone returns a shallow copy of b. A nil receiver yields an empty map.
func (b Bindings) Clone() Bindings {
	out := make(Bindings, len(b)+1)
	for k, v := range b {
		out[k] = v
	}
	return out
}

// scriptBindings copies caller bindings and sets the reserved entries.
func scriptBindings(b Bindings, script string) Bindings {
	out := b.Clone()
	out[ThisScript] = script
	return out
}
