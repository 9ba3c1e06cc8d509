// Package node provides runtime contexts for dispatch lookups. A Node
// is an attribute bag describing the machine or request being
// dispatched for: the well-known platform attributes plus anything a
// predicate might want to inspect.
package node

import (
	"fmt"
	"runtime"

	"github.com/tidwall/gjson"

	"github.com/involucelate/chef/pkg/nodemap"
)

// Node implements the dispatch context capability: attribute lookup by
// name. Explicitly set attributes shadow values from an attached JSON
// document.
type Node struct {
	attrs map[string]string
	raw   []byte
}

// New builds a Node from a flat attribute map.
func New(attrs map[string]string) *Node {
	n := &Node{attrs: make(map[string]string, len(attrs))}
	for k, v := range attrs {
		n.attrs[k] = v
	}
	return n
}

// FromJSON wraps a JSON attributes document as a Node. Lookups resolve
// through gjson path syntax, so nested values are addressable by
// dotted paths ("kernel.release") and non-string scalars stringify.
func FromJSON(data []byte) (*Node, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("node: attributes document is not valid JSON")
	}
	return &Node{raw: append([]byte(nil), data...)}, nil
}

// Detect returns a best-effort local node: os from the Go runtime and
// nothing else. Richer platform facts are the caller's concern.
func Detect() *Node {
	return New(map[string]string{nodemap.AttrOS: runtime.GOOS})
}

// Attribute implements attribute lookup by name. Safe on a nil Node,
// which defines no attributes.
func (n *Node) Attribute(name string) (string, bool) {
	if n == nil {
		return "", false
	}
	if v, ok := n.attrs[name]; ok {
		return v, true
	}
	if len(n.raw) > 0 {
		if res := gjson.GetBytes(n.raw, name); res.Exists() {
			return res.String(), true
		}
	}
	return "", false
}

// Set assigns an attribute, shadowing any JSON-sourced value, and
// returns the node for chaining.
func (n *Node) Set(name, value string) *Node {
	if n.attrs == nil {
		n.attrs = make(map[string]string)
	}
	n.attrs[name] = value
	return n
}

// Platform returns the platform attribute, or "".
func (n *Node) Platform() string {
	v, _ := n.Attribute(nodemap.AttrPlatform)
	return v
}

// PlatformVersion returns the platform_version attribute, or "".
func (n *Node) PlatformVersion() string {
	v, _ := n.Attribute(nodemap.AttrPlatformVersion)
	return v
}

// PlatformFamily returns the platform_family attribute, or "".
func (n *Node) PlatformFamily() string {
	v, _ := n.Attribute(nodemap.AttrPlatformFamily)
	return v
}

// OS returns the os attribute, or "".
func (n *Node) OS() string {
	v, _ := n.Attribute(nodemap.AttrOS)
	return v
}

var _ nodemap.Context = (*Node)(nil)
