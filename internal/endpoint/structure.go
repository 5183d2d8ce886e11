package endpoint

import (
	"fmt"
)

// Structure indexes endpoints by their path nodes in a trie so a concrete
// request path can be matched back to the endpoints that serve it.
type Structure struct {
	root  *structureNode
	count int
}

type structureNode struct {
	node      PathNode
	children  []*structureNode
	endpoints []*Endpoint
}

// NewStructure creates an empty route structure.
func NewStructure() *Structure {
	return &Structure{root: &structureNode{}}
}

// Accept adds a single endpoint without its variants.
func (s *Structure) Accept(e *Endpoint) error {
	if e == nil {
		return fmt.Errorf("cannot accept nil endpoint")
	}

	nodes := e.PathNodes
	if nodes == nil {
		nodes = ParsePathNodes(e.URLPath)
	}

	current := s.root
	for i, n := range nodes {
		if n.Type != LiteralNode && n.Type != WildcardNode {
			return fmt.Errorf("endpoint %s: path node %d has unknown type %q", e, i, n.Type)
		}
		current = current.child(n)
	}
	current.endpoints = append(current.endpoints, e)
	s.count++
	return nil
}

// AcceptAll adds every endpoint and its variants.
func (s *Structure) AcceptAll(roots []*Endpoint) error {
	for i, root := range roots {
		if root == nil {
			return fmt.Errorf("endpoint %d is nil", i)
		}
	}
	for _, e := range Flatten(roots) {
		if err := s.Accept(e); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of accepted endpoints.
func (s *Structure) Len() int {
	return s.count
}

// Lookup returns the endpoints whose path nodes match the concrete path.
// Literal matches are preferred over wildcards at every level.
func (s *Structure) Lookup(urlPath string) []*Endpoint {
	segments := splitPath(urlPath)
	return s.root.lookup(segments)
}

func (n *structureNode) child(pn PathNode) *structureNode {
	for _, c := range n.children {
		if c.node == pn {
			return c
		}
	}
	c := &structureNode{node: pn}
	n.children = append(n.children, c)
	return c
}

func (n *structureNode) lookup(segments []string) []*Endpoint {
	if len(segments) == 0 {
		return n.endpoints
	}

	head, rest := segments[0], segments[1:]
	for _, c := range n.children {
		if c.node.Type == LiteralNode && c.node.Value == head {
			if found := c.lookup(rest); len(found) > 0 {
				return found
			}
		}
	}
	for _, c := range n.children {
		if c.node.Type == WildcardNode {
			if found := c.lookup(rest); len(found) > 0 {
				return found
			}
		}
	}
	return nil
}
