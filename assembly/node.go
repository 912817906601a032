package assembly

import (
	"slices"
	"strings"
	"sync/atomic"

	"github.com/brettbedarf/assemblyfs"
	"github.com/puzpuzpuz/xsync/v4"
)

// Node is one segment of the assembly tree. Children are matched without regard
// to case. A node may carry a target file and still have children; lookups that
// run past the tree continue inside the deepest target.
type Node struct {
	name     string                    // name as first added
	children *xsync.Map[string, *Node] // lower-cased name -> child
	target   atomic.Pointer[assemblyfs.VirtualFile]
}

func newNode(name string) *Node {
	return &Node{
		name:     name,
		children: xsync.NewMap[string, *Node](),
	}
}

func key(name string) string {
	return strings.ToLower(name)
}

// Name returns the segment name the node was created with.
func (n *Node) Name() string {
	return n.name
}

// Target returns the file mounted at this node, or nil on intermediate nodes.
func (n *Node) Target() *assemblyfs.VirtualFile {
	return n.target.Load()
}

// SetTarget replaces the node's target. Children are left untouched.
func (n *Node) SetTarget(f *assemblyfs.VirtualFile) {
	n.target.Store(f)
}

// Child returns the child matching name case-insensitively.
func (n *Node) Child(name string) (*Node, bool) {
	return n.children.Load(key(name))
}

// childOrBuild returns the child for name, creating it if missing. Concurrent
// callers converge on a single child.
func (n *Node) childOrBuild(name string) *Node {
	k := key(name)
	if c, ok := n.children.Load(k); ok {
		return c
	}
	c, _ := n.children.LoadOrStore(k, newNode(name))
	return c
}

// ChildNames returns the sorted names of the node's children.
func (n *Node) ChildNames() []string {
	names := make([]string, 0, n.children.Size())
	n.children.Range(func(_ string, c *Node) bool {
		names = append(names, c.name)
		return true
	})
	slices.Sort(names)
	return names
}

// Find walks the tree along p and returns the node at its end.
func (n *Node) Find(p *Path) (*Node, bool) {
	cur := n
	for seg, ok := p.Next(); ok; seg, ok = p.Next() {
		child, found := cur.Child(seg)
		if !found {
			return nil, false
		}
		cur = child
	}
	return cur, true
}

// FindOrBuild walks the tree along p creating any missing node.
func (n *Node) FindOrBuild(p *Path) *Node {
	cur := n
	for seg, ok := p.Next(); ok; seg, ok = p.Next() {
		cur = cur.childOrBuild(seg)
	}
	return cur
}

// Resolve returns the file for p. The walk follows tree nodes as long as they
// match; once no child matches, the remaining segments are looked up below the
// current node's target. There is no backtracking into sibling branches.
func (n *Node) Resolve(p *Path) (*assemblyfs.VirtualFile, bool) {
	cur := n
	for {
		seg, ok := p.Next()
		if !ok {
			t := cur.Target()
			return t, t != nil
		}
		if child, found := cur.Child(seg); found {
			cur = child
			continue
		}
		file := cur.Target()
		if file == nil {
			return nil, false
		}
		for ; ok; seg, ok = p.Next() {
			next, found := file.ExistingChild(seg)
			if !found {
				return nil, false
			}
			file = next
		}
		return file, true
	}
}
