package document

import "gopkg.in/yaml.v3"

// Node is a mutable view of one node in a parsed document. Mapping keys keep
// their serialized order. Aliases are followed transparently.
type Node struct {
	n *yaml.Node
}

func wrap(n *yaml.Node) *Node {
	if n == nil {
		return nil
	}
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return &Node{n: n}
}

// Wrap returns a Node over an existing yaml.Node.
func Wrap(n *yaml.Node) *Node { return wrap(n) }

// NewScalar returns a plain string scalar.
func NewScalar(value string) *Node {
	return &Node{n: &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}}
}

// NewMapping returns an empty block mapping.
func NewMapping() *Node {
	return &Node{n: &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}}
}

// NewFlowMapping returns an empty mapping serialized inline as {k: v}.
func NewFlowMapping() *Node {
	return &Node{n: &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map", Style: yaml.FlowStyle}}
}

// NewSequence returns an empty block sequence.
func NewSequence() *Node {
	return &Node{n: &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}}
}

// YAML exposes the underlying tree node.
func (n *Node) YAML() *yaml.Node { return n.n }

// Tag returns the explicit tag written on the node, such as "!Material", or
// "" when the node carries only an implicit tag.
func (n *Node) Tag() string {
	if n.n.Style&yaml.TaggedStyle != 0 {
		return n.n.Tag
	}
	return ""
}

func (n *Node) IsMapping() bool  { return n.n.Kind == yaml.MappingNode }
func (n *Node) IsSequence() bool { return n.n.Kind == yaml.SequenceNode }
func (n *Node) IsScalar() bool   { return n.n.Kind == yaml.ScalarNode }

// IsNull reports whether the node is an empty or explicit null scalar.
func (n *Node) IsNull() bool {
	return n.n.Kind == yaml.ScalarNode && (n.n.Tag == "!!null" || (n.n.Tag == "" && n.n.Value == ""))
}

// Scalar returns the scalar value, or false when the node is not a scalar.
func (n *Node) Scalar() (string, bool) {
	if n.n.Kind != yaml.ScalarNode {
		return "", false
	}
	return n.n.Value, true
}

// Items returns the elements of a sequence, or nil for other kinds.
func (n *Node) Items() []*Node {
	if n.n.Kind != yaml.SequenceNode {
		return nil
	}
	out := make([]*Node, 0, len(n.n.Content))
	for _, c := range n.n.Content {
		out = append(out, wrap(c))
	}
	return out
}

// Append adds value to the end of a sequence.
func (n *Node) Append(value *Node) {
	if n.n.Kind != yaml.SequenceNode {
		return
	}
	n.n.Content = append(n.n.Content, value.n)
}

// Len returns the number of mapping entries or sequence items.
func (n *Node) Len() int {
	switch n.n.Kind {
	case yaml.MappingNode:
		return len(n.n.Content) / 2
	case yaml.SequenceNode:
		return len(n.n.Content)
	}
	return 0
}

// Keys returns the mapping keys in document order.
func (n *Node) Keys() []string {
	if n.n.Kind != yaml.MappingNode {
		return nil
	}
	keys := make([]string, 0, len(n.n.Content)/2)
	for i := 0; i+1 < len(n.n.Content); i += 2 {
		keys = append(keys, n.n.Content[i].Value)
	}
	return keys
}

// Index returns the position of key name among the mapping entries, or -1.
func (n *Node) Index(name string) int {
	if n.n.Kind != yaml.MappingNode {
		return -1
	}
	for i := 0; i+1 < len(n.n.Content); i += 2 {
		if n.n.Content[i].Value == name {
			return i / 2
		}
	}
	return -1
}

// Child returns the value stored under name, or nil.
func (n *Node) Child(name string) *Node {
	i := n.Index(name)
	if i < 0 {
		return nil
	}
	return wrap(n.n.Content[2*i+1])
}

// Set stores value under name, replacing an existing value in place or
// appending a new entry. A null scalar receiving a child becomes a mapping;
// other non-mapping nodes are left untouched.
func (n *Node) Set(name string, value *Node) {
	if !n.ensureMapping() {
		return
	}
	if i := n.Index(name); i >= 0 {
		n.n.Content[2*i+1] = value.n
		return
	}
	n.n.Content = append(n.n.Content, keyNode(name), value.n)
}

// SetScalar stores a string scalar under name.
func (n *Node) SetScalar(name, value string) {
	n.Set(name, NewScalar(value))
}

// InsertAt stores value under name at entry position index. An existing entry
// with the same key is removed first.
func (n *Node) InsertAt(index int, name string, value *Node) {
	if !n.ensureMapping() {
		return
	}
	n.Remove(name)

	if index < 0 {
		index = 0
	}
	if limit := len(n.n.Content) / 2; index > limit {
		index = limit
	}

	at := 2 * index
	content := make([]*yaml.Node, 0, len(n.n.Content)+2)
	content = append(content, n.n.Content[:at]...)
	content = append(content, keyNode(name), value.n)
	content = append(content, n.n.Content[at:]...)
	n.n.Content = content
}

// InsertAfter stores value under name directly after key after, or first
// when after is absent.
func (n *Node) InsertAfter(after, name string, value *Node) {
	if !n.ensureMapping() {
		return
	}
	n.Remove(name)
	n.InsertAt(n.Index(after)+1, name, value)
}

// Remove deletes the entry stored under name and reports whether it existed.
func (n *Node) Remove(name string) bool {
	i := n.Index(name)
	if i < 0 {
		return false
	}
	n.n.Content = append(n.n.Content[:2*i], n.n.Content[2*i+2:]...)
	return true
}

// Rename changes the key of an entry, keeping its position.
func (n *Node) Rename(from, to string) bool {
	i := n.Index(from)
	if i < 0 {
		return false
	}
	if from != to {
		n.Remove(to)
		i = n.Index(from)
	}
	n.n.Content[2*i].Value = to
	return true
}

// MoveToIndex moves the entry stored under name to entry position index.
func (n *Node) MoveToIndex(name string, index int) bool {
	i := n.Index(name)
	if i < 0 {
		return false
	}
	key, value := n.n.Content[2*i], n.n.Content[2*i+1]
	n.n.Content = append(n.n.Content[:2*i], n.n.Content[2*i+2:]...)

	if index < 0 {
		index = 0
	}
	if limit := len(n.n.Content) / 2; index > limit {
		index = limit
	}

	at := 2 * index
	content := make([]*yaml.Node, 0, len(n.n.Content)+2)
	content = append(content, n.n.Content[:at]...)
	content = append(content, key, value)
	content = append(content, n.n.Content[at:]...)
	n.n.Content = content
	return true
}

// Clone returns a deep copy of n. Aliases are expanded in the copy.
func (n *Node) Clone() *Node {
	return &Node{n: cloneYAML(n.n)}
}

func cloneYAML(src *yaml.Node) *yaml.Node {
	for src.Kind == yaml.AliasNode && src.Alias != nil {
		src = src.Alias
	}
	dst := *src
	dst.Anchor = ""
	dst.Content = nil
	for _, c := range src.Content {
		dst.Content = append(dst.Content, cloneYAML(c))
	}
	return &dst
}

func (n *Node) ensureMapping() bool {
	if n.n.Kind == yaml.MappingNode {
		return true
	}
	if !n.IsNull() {
		return false
	}
	n.n.Kind = yaml.MappingNode
	n.n.Tag = "!!map"
	n.n.Value = ""
	n.n.Content = nil
	return true
}

func keyNode(name string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: name}
}
