package config

import (
	"fmt"
	"os"

	"github.com/tidwall/gjson"
)

// LoadBindings reads a JSON object of script bindings from path. Values keep
// their JSON shape: numbers become float64, objects map[string]any.
func LoadBindings(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBindings, err)
	}
	return ParseBindings(data)
}

// ParseBindings decodes a JSON object of script bindings.
func ParseBindings(data []byte) (map[string]any, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: malformed JSON", ErrBindings)
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return nil, fmt.Errorf("%w: top level must be an object", ErrBindings)
	}

	bindings := make(map[string]any)
	doc.ForEach(func(key, value gjson.Result) bool {
		bindings[key.String()] = value.Value()
		return true
	})
	return bindings, nil
}
