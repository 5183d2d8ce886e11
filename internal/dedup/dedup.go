// Package dedup finds endpoints that describe the same route more than once.
package dedup

import (
	"strconv"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/PentesterFlow/routecheck/internal/endpoint"
)

// falsePositiveRate of the candidate filter. False positives only cost an
// extra scan.
const falsePositiveRate = 0.001

// Match reports whether b duplicates a. Identity fields must be equal and
// every parameter of a must exist in b with the same param type, data type
// and presence of accepted values. When both carry accepted values, one set
// must contain the other. Parameters only present in b are not compared, so
// Match is not symmetric.
func Match(a, b *endpoint.Endpoint) bool {
	if a.URLPath != b.URLPath ||
		a.HTTPMethod != b.HTTPMethod ||
		a.FilePath != b.FilePath ||
		a.StartingLine != b.StartingLine ||
		a.EndingLine != b.EndingLine {
		return false
	}
	return parametersMatch(a, b)
}

func parametersMatch(a, b *endpoint.Endpoint) bool {
	for name, ap := range a.Parameters {
		bp, ok := b.Parameters[name]
		if !ok {
			return false
		}
		if ap == nil || bp == nil {
			if ap != bp {
				return false
			}
			continue
		}
		if ap.ParamType != bp.ParamType ||
			ap.DataType != bp.DataType ||
			ap.HasAcceptedValues() != bp.HasAcceptedValues() {
			return false
		}
		if ap.HasAcceptedValues() &&
			!containsAll(ap.AcceptedValues, bp.AcceptedValues) &&
			!containsAll(bp.AcceptedValues, ap.AcceptedValues) {
			return false
		}
	}
	return true
}

// containsAll reports whether every value of sub is in super.
func containsAll(super, sub []string) bool {
	set := make(map[string]struct{}, len(super))
	for _, v := range super {
		set[v] = struct{}{}
	}
	for _, v := range sub {
		if _, ok := set[v]; !ok {
			return false
		}
	}
	return true
}

// Key returns the identity key that duplicates must share.
func Key(e *endpoint.Endpoint) string {
	var b strings.Builder
	b.WriteString(e.HTTPMethod)
	b.WriteByte('|')
	b.WriteString(e.URLPath)
	b.WriteByte('|')
	b.WriteString(e.FilePath)
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(e.StartingLine))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(e.EndingLine))
	return b.String()
}

// Cluster partitions endpoints into groups of duplicates and returns the
// groups with more than one member, in order of their first member. Each
// endpoint not yet in a group collects every unassigned endpoint it matches,
// itself included, so groups never overlap.
func Cluster(endpoints []*endpoint.Endpoint) [][]*endpoint.Endpoint {
	repeated := repeatedKeys(endpoints)
	assigned := make(map[*endpoint.Endpoint]struct{})

	var clusters [][]*endpoint.Endpoint
	for _, main := range endpoints {
		if main == nil {
			continue
		}
		if _, ok := assigned[main]; ok {
			continue
		}
		if _, ok := repeated[Key(main)]; !ok {
			continue
		}

		var current []*endpoint.Endpoint
		for _, other := range endpoints {
			if other == nil {
				continue
			}
			if _, ok := assigned[other]; ok {
				continue
			}
			if Match(main, other) {
				current = append(current, other)
			}
		}
		if len(current) < 2 {
			continue
		}
		for _, e := range current {
			assigned[e] = struct{}{}
		}
		clusters = append(clusters, current)
	}
	return clusters
}

// repeatedKeys returns the keys that may occur more than once. An endpoint
// whose key occurs once can only ever match itself.
func repeatedKeys(endpoints []*endpoint.Endpoint) map[string]struct{} {
	n := uint(len(endpoints))
	if n < 64 {
		n = 64
	}
	filter := bloom.NewWithEstimates(n, falsePositiveRate)

	repeated := make(map[string]struct{})
	for _, e := range endpoints {
		if e == nil {
			continue
		}
		key := Key(e)
		if filter.TestAndAddString(key) {
			repeated[key] = struct{}{}
		}
	}
	return repeated
}
