package agentspec

import "gopkg.in/yaml.v3"

// Inheritable is a tri-state YAML field: either the key was absent
// (Inherit — the resolved spec takes the parent's value) or present
// (Value — overrides the parent regardless of what the decoded value
// looks like, including an explicit YAML null). Grounded authoritatively
// on agentspec.rs's Inheritable<T> enum and its custom Deserialize impl,
// which unconditionally wraps whatever T decodes to in Value and relies
// on serde's `#[serde(default)]` (key absent) to leave the Default
// (Inherit) in place. yaml.v3 invokes UnmarshalYAML only for keys present
// in the mapping with a non-null value; for the tools, exclude_tools and
// subagents fields, parseAgentSpecFile marks an explicit null as set.
type Inheritable[T any] struct {
	value T
	set   bool
}

// Set wraps v as an explicitly-set Inheritable value.
func Set[T any](v T) Inheritable[T] {
	return Inheritable[T]{value: v, set: true}
}

// IsInherit reports whether the field was absent from its source YAML.
func (i Inheritable[T]) IsInherit() bool { return !i.set }

// Value returns the decoded value and whether it was actually set.
func (i Inheritable[T]) Value() (T, bool) { return i.value, i.set }

// UnmarshalYAML implements yaml.Unmarshaler. Called only when the key is
// present in the source mapping with a non-null value.
func (i *Inheritable[T]) UnmarshalYAML(node *yaml.Node) error {
	var v T
	if err := node.Decode(&v); err != nil {
		return err
	}
	i.value = v
	i.set = true
	return nil
}
