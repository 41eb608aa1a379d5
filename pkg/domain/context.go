package domain

import "strings"

// Context is the session's key/value store, written by input collection and
// actions, read by templates and conditions.
type Context map[string]Value

// Lookup resolves a dotted path ("user.address.city") by sequential map descent.
// A key containing dots is tried verbatim first.
func (c Context) Lookup(path string) (Value, bool) {
	if v, ok := c[path]; ok {
		return v, true
	}
	parts := strings.Split(path, ".")
	cur, ok := c[parts[0]]
	if !ok {
		return Value{}, false
	}
	for _, part := range parts[1:] {
		cur, ok = cur.Get(part)
		if !ok {
			return Value{}, false
		}
	}
	return cur, true
}

// Find searches the whole context for key at any depth.
func (c Context) Find(key string) (Value, bool) {
	if v, ok := c[key]; ok {
		return v, true
	}
	return Map(c).Find(key)
}

// Merge copies every entry of other into c.
func (c Context) Merge(other Context) {
	for k, v := range other {
		c[k] = v
	}
}

// Clone returns a deep copy.
func (c Context) Clone() Context {
	out := make(Context, len(c))
	for k, v := range c {
		out[k] = v.Clone()
	}
	return out
}

// Text returns the rendered value under key, or "" when absent.
func (c Context) Text(key string) string {
	v, ok := c[key]
	if !ok {
		return ""
	}
	return v.Text()
}

// ContextFromAny converts a decoded JSON object into a Context.
func ContextFromAny(m map[string]any) Context {
	out := make(Context, len(m))
	for k, v := range m {
		out[k] = FromAny(v)
	}
	return out
}

// Plain converts the context into plain Go values.
func (c Context) Plain() map[string]any {
	out := make(map[string]any, len(c))
	for k, v := range c {
		out[k] = v.Any()
	}
	return out
}
