package report

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/sjson"
)

// Collector records reports in memory. It is safe for concurrent use.
type Collector struct {
	mu      sync.RWMutex
	entries []Entry
	now     func() time.Time
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{now: time.Now}
}

// AddLoadingError implements runner.ErrorReporter.
func (c *Collector) AddLoadingError(pluginID, message string) {
	c.add(Entry{Kind: KindLoading, PluginID: pluginID, Message: message})
}

// AddRunningError implements runner.ErrorReporter.
func (c *Collector) AddRunningError(pluginID string, cause error) {
	d := Describe(cause)
	c.add(Entry{Kind: KindRunning, PluginID: pluginID, Message: d.Message, Cause: cause, Stack: d.Stack})
}

func (c *Collector) add(e Entry) {
	e.ID = uuid.NewString()
	e.Time = c.now()

	c.mu.Lock()
	c.entries = append(c.entries, e)
	c.mu.Unlock()
}

// Entries returns a copy of all entries in report order.
func (c *Collector) Entries() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Entry(nil), c.entries...)
}

// ForPlugin returns the entries of one plugin.
func (c *Collector) ForPlugin(pluginID string) []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []Entry
	for _, e := range c.entries {
		if e.PluginID == pluginID {
			out = append(out, e)
		}
	}
	return out
}

// Count returns the number of entries of kind.
func (c *Collector) Count(kind Kind) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, e := range c.entries {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// Len returns the number of entries.
func (c *Collector) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// HasErrors reports whether anything was reported.
func (c *Collector) HasErrors() bool {
	return c.Len() > 0
}

// Forget drops the entries of one plugin.
func (c *Collector) Forget(pluginID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.entries[:0]
	for _, e := range c.entries {
		if e.PluginID != pluginID {
			kept = append(kept, e)
		}
	}
	clear(c.entries[len(kept):])
	c.entries = kept
}

// Reset drops all entries.
func (c *Collector) Reset() {
	c.mu.Lock()
	c.entries = nil
	c.mu.Unlock()
}

// JSON renders the entries as {"entries": [...]}.
func (c *Collector) JSON() ([]byte, error) {
	entries := c.Entries()

	doc := []byte(`{"entries":[]}`)
	for _, e := range entries {
		item := map[string]any{
			"id":      e.ID,
			"kind":    string(e.Kind),
			"plugin":  e.PluginID,
			"message": e.Message,
			"time":    e.Time.UTC().Format(time.RFC3339Nano),
		}
		if e.Stack != "" {
			item["stack"] = e.Stack
		}
		if e.Cause != nil {
			item["type"] = Describe(e.Cause).Type
		}

		var err error
		doc, err = sjson.SetBytes(doc, "entries.-1", item)
		if err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// WriteText writes one block per entry: a header line with kind and plugin
// followed by the indented message.
func (c *Collector) WriteText(w io.Writer) error {
	for _, e := range c.Entries() {
		text := e.Message
		if e.Kind == KindRunning {
			text = Describe(e.Cause).String()
		}
		if _, err := fmt.Fprintf(w, "[%s] %s\n", e.Kind, e.PluginID); err != nil {
			return err
		}
		for _, line := range splitLines(text) {
			if _, err := fmt.Fprintf(w, "    %s\n", line); err != nil {
				return err
			}
		}
	}
	return nil
}

func splitLines(s string) []string {
	return strings.Split(strings.TrimRight(s, "\n"), "\n")
}
