package endpoint

import (
	"strings"
)

// NodeType distinguishes literal path segments from wildcards.
type NodeType string

const (
	LiteralNode  NodeType = "literal"
	WildcardNode NodeType = "wildcard"
)

// PathNode is one resolved segment of an endpoint URL path.
type PathNode struct {
	Type  NodeType
	Value string
}

// Matches reports whether the node accepts the given concrete segment.
func (n PathNode) Matches(segment string) bool {
	if n.Type == WildcardNode {
		return true
	}
	return n.Value == segment
}

// ParsePathNodes splits urlPath into nodes. Segments written as {name}, :name,
// <name>, <type:name>, *, ** or a regex group are wildcards.
func ParsePathNodes(urlPath string) []PathNode {
	segments := splitPath(urlPath)
	nodes := make([]PathNode, 0, len(segments))
	for _, s := range segments {
		if isWildcardSegment(s) {
			nodes = append(nodes, PathNode{Type: WildcardNode, Value: s})
		} else {
			nodes = append(nodes, PathNode{Type: LiteralNode, Value: s})
		}
	}
	return nodes
}

func splitPath(urlPath string) []string {
	if i := strings.IndexAny(urlPath, "?#"); i >= 0 {
		urlPath = urlPath[:i]
	}
	parts := strings.Split(urlPath, "/")
	segments := parts[:0]
	for _, p := range parts {
		if p != "" {
			segments = append(segments, p)
		}
	}
	return segments
}

func isWildcardSegment(s string) bool {
	switch {
	case s == "*" || s == "**":
		return true
	case strings.HasPrefix(s, ":") && len(s) > 1:
		return true
	case strings.Contains(s, "{") && strings.Contains(s, "}"):
		return true
	case strings.HasPrefix(s, "<") && strings.HasSuffix(s, ">"):
		return true
	case strings.Contains(s, "(") && strings.Contains(s, ")"):
		return true
	}
	return false
}
