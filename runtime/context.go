package runtime

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Jeffail/gabs/v2"
)

// Context is the mutable store threaded through a recipe execution: an
// artifact tree steps read from and write to, plus a read-only config tree
// resolved once at the top of the run. Artifacts are addressed by dotted
// path ("a.b.0.c") the same way a step's template expressions address them.
type Context struct {
	artifacts *gabs.Container
	config    *gabs.Container
	order     []string
}

// NewContext creates a Context seeded with the given artifacts and config.
// Either may be nil, in which case an empty tree is used.
func NewContext(artifacts map[string]any, config map[string]any) *Context {
	c := &Context{
		artifacts: gabs.New(),
		config:    gabs.New(),
	}
	for k, v := range artifacts {
		c.Set(k, v)
	}
	for k, v := range config {
		_ = c.config.SetP(v, k)
	}
	return c
}

// Get returns the value stored at the dotted path, or defaultValue (nil if
// omitted) when the path does not exist.
func (c *Context) Get(key string, defaultValue ...any) any {
	container := c.artifacts.Path(key)
	if container == nil || container.Data() == nil {
		if !c.Contains(key) {
			if len(defaultValue) > 0 {
				return defaultValue[0]
			}
			return nil
		}
	}
	return container.Data()
}

// Set stores value at the dotted path, creating intermediate maps as needed.
func (c *Context) Set(key string, value any) {
	top, _, _ := strings.Cut(key, ".")
	if !c.artifacts.Exists(top) {
		c.order = append(c.order, top)
	}
	if _, err := c.artifacts.SetP(value, key); err != nil {
		// SetP only fails when an intermediate path segment is a
		// non-traversable scalar; recipes that do this have a bug in their
		// own step ordering, not something the engine can silently fix.
		panic(fmt.Sprintf("context: cannot set %q: %v", key, err))
	}
}

// Delete removes the value at the dotted path. Returns an error if the path
// does not exist.
func (c *Context) Delete(key string) error {
	if !c.Contains(key) {
		return fmt.Errorf("context: key %q not found", key)
	}
	if err := c.artifacts.DeleteP(key); err != nil {
		return fmt.Errorf("context: delete %q: %w", key, err)
	}
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

// Contains reports whether the dotted path resolves to a stored value.
func (c *Context) Contains(key string) bool {
	return c.artifacts.ExistsP(key)
}

// Len returns the number of top-level artifact keys.
func (c *Context) Len() int {
	children, _ := c.artifacts.ChildrenMap()
	return len(children)
}

// Keys returns the top-level artifact keys in first-set order.
func (c *Context) Keys() []string {
	out := make([]string, 0, len(c.order))
	for _, k := range c.order {
		if c.artifacts.Exists(k) {
			out = append(out, k)
		}
	}
	return out
}

// Clone returns a deep copy of the Context: mutating the clone's artifacts
// never affects the parent's, and vice versa.
func (c *Context) Clone() *Context {
	clonedArtifacts, err := gabs.ParseJSON(c.artifacts.Bytes())
	if err != nil {
		clonedArtifacts = gabs.New()
	}
	clonedConfig, err := gabs.ParseJSON(c.config.Bytes())
	if err != nil {
		clonedConfig = gabs.New()
	}
	order := make([]string, len(c.order))
	copy(order, c.order)
	return &Context{artifacts: clonedArtifacts, config: clonedConfig, order: order}
}

// AsDict returns a deep copy of every top-level artifact as a plain map,
// suitable for handing to the template renderer or an expression evaluator.
// The caller may freely mutate the result without affecting the Context.
func (c *Context) AsDict() map[string]any {
	copied, err := gabs.ParseJSON(c.artifacts.Bytes())
	if err != nil {
		return map[string]any{}
	}
	data, ok := copied.Data().(map[string]any)
	if !ok || data == nil {
		return map[string]any{}
	}
	return data
}

// Config returns the read-only config tree as a plain map.
func (c *Context) Config() map[string]any {
	data, ok := c.config.Data().(map[string]any)
	if !ok || data == nil {
		return map[string]any{}
	}
	return data
}

// setConfig stores value under key in the config tree. Unexported: config is
// read-only from a step's perspective; only the executor's env_mask
// resolution at recipe-load time is allowed to populate it.
func (c *Context) setConfig(key string, value any) {
	_ = c.config.SetP(value, key)
}

// sortedKeys returns m's keys in sorted order.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
