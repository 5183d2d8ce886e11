package dedup

import (
	"fmt"
	"testing"

	"github.com/PentesterFlow/routecheck/internal/endpoint"
)

func newEndpoint(path string) *endpoint.Endpoint {
	e := endpoint.New(endpoint.KindSpring, "GET", path, "src/UserController.java")
	e.StartingLine = 10
	e.EndingLine = 20
	e.AddParameter(&endpoint.RouteParameter{Name: "id", DataType: "Integer", ParamType: endpoint.QueryString})
	return e
}

func withValues(e *endpoint.Endpoint, values ...string) *endpoint.Endpoint {
	e.AddParameter(&endpoint.RouteParameter{
		Name:           "sort",
		DataType:       "String",
		ParamType:      endpoint.QueryString,
		AcceptedValues: values,
	})
	return e
}

func withParam(e *endpoint.Endpoint, name string) *endpoint.Endpoint {
	e.AddParameter(&endpoint.RouteParameter{Name: name, ParamType: endpoint.QueryString})
	return e
}

// =============================================================================
// Match Tests
// =============================================================================

func TestMatch(t *testing.T) {
	tests := []struct {
		name string
		a, b *endpoint.Endpoint
		want bool
	}{
		{"identical", newEndpoint("/users"), newEndpoint("/users"), true},
		{"different path", newEndpoint("/users"), newEndpoint("/admins"), false},
		{"different lines", newEndpoint("/users"), func() *endpoint.Endpoint {
			e := newEndpoint("/users")
			e.EndingLine = 21
			return e
		}(), false},
		{"different method", newEndpoint("/users"), func() *endpoint.Endpoint {
			e := newEndpoint("/users")
			e.HTTPMethod = "POST"
			return e
		}(), false},
		{"different data type", newEndpoint("/users"), func() *endpoint.Endpoint {
			e := newEndpoint("/users")
			e.Parameters["id"].DataType = "Long"
			return e
		}(), false},
		{"different param type", newEndpoint("/users"), func() *endpoint.Endpoint {
			e := newEndpoint("/users")
			e.Parameters["id"].ParamType = endpoint.FormData
			return e
		}(), false},
		{"subset values", withValues(newEndpoint("/users"), "asc"), withValues(newEndpoint("/users"), "asc", "desc"), true},
		{"superset values", withValues(newEndpoint("/users"), "asc", "desc"), withValues(newEndpoint("/users"), "desc"), true},
		{"overlapping values", withValues(newEndpoint("/users"), "asc", "name"), withValues(newEndpoint("/users"), "asc", "desc"), false},
		{"present vs absent values", withValues(newEndpoint("/users"), "asc"), withValues(newEndpoint("/users")), false},
		{"empty vs absent values", withValues(newEndpoint("/users"), []string{}...), withValues(newEndpoint("/users")), false},
		{"extra param in b", newEndpoint("/users"), withValues(newEndpoint("/users"), "asc"), true},
		{"extra param in a", withValues(newEndpoint("/users"), "asc"), newEndpoint("/users"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Match(tt.a, tt.b); got != tt.want {
				t.Errorf("Match() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKey(t *testing.T) {
	if got := Key(newEndpoint("/users")); got != "GET|/users|src/UserController.java|10|20" {
		t.Errorf("Key() = %q", got)
	}
}

// =============================================================================
// Cluster Tests
// =============================================================================

func TestCluster_SingleDuplicatePair(t *testing.T) {
	a := newEndpoint("/users")
	b := newEndpoint("/users")
	c := newEndpoint("/accounts")

	clusters := Cluster([]*endpoint.Endpoint{a, b, c})

	if len(clusters) != 1 {
		t.Fatalf("len(clusters) = %d, want 1", len(clusters))
	}
	if len(clusters[0]) != 2 || clusters[0][0] != a || clusters[0][1] != b {
		t.Errorf("cluster = %v, want [A B]", clusters[0])
	}
	for _, e := range clusters[0] {
		if e == c {
			t.Error("C should not appear in any cluster")
		}
	}
}

func TestCluster_NoDuplicates(t *testing.T) {
	if got := Cluster([]*endpoint.Endpoint{newEndpoint("/a"), newEndpoint("/b")}); len(got) != 0 {
		t.Errorf("Cluster() = %v, want none", got)
	}
	if got := Cluster(nil); len(got) != 0 {
		t.Errorf("Cluster(nil) = %v, want none", got)
	}
}

func TestCluster_SameKeyDifferentParameters(t *testing.T) {
	a := withValues(newEndpoint("/users"), "asc")
	b := withValues(newEndpoint("/users"), "desc")
	c := withValues(newEndpoint("/users"), "asc", "desc")

	clusters := Cluster([]*endpoint.Endpoint{a, b, c})

	// a takes c; b only matches the already assigned c and stays alone.
	if len(clusters) != 1 {
		t.Fatalf("len(clusters) = %d, want 1", len(clusters))
	}
	if len(clusters[0]) != 2 || clusters[0][0] != a || clusters[0][1] != c {
		t.Errorf("clusters[0] = %v, want [a c]", clusters[0])
	}
}

func TestCluster_Disjoint(t *testing.T) {
	tests := []struct {
		name  string
		build func() []*endpoint.Endpoint
		sizes []int
	}{
		{
			name: "bare endpoint first",
			build: func() []*endpoint.Endpoint {
				return []*endpoint.Endpoint{
					newEndpoint("/u"),
					withParam(newEndpoint("/u"), "x"),
					withParam(newEndpoint("/u"), "x"),
				}
			},
			sizes: []int{3},
		},
		{
			name: "bare endpoint last",
			build: func() []*endpoint.Endpoint {
				return []*endpoint.Endpoint{
					withParam(newEndpoint("/u"), "x"),
					withParam(newEndpoint("/u"), "x"),
					newEndpoint("/u"),
				}
			},
			sizes: []int{2},
		},
		{
			name: "two groups",
			build: func() []*endpoint.Endpoint {
				return []*endpoint.Endpoint{
					newEndpoint("/u"),
					withParam(newEndpoint("/u"), "x"),
					newEndpoint("/v"),
					newEndpoint("/v"),
				}
			},
			sizes: []int{2, 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clusters := Cluster(tt.build())

			if len(clusters) != len(tt.sizes) {
				t.Fatalf("len(clusters) = %d, want %d", len(clusters), len(tt.sizes))
			}
			seen := make(map[*endpoint.Endpoint]int)
			for i, c := range clusters {
				if len(c) != tt.sizes[i] {
					t.Errorf("len(clusters[%d]) = %d, want %d", i, len(c), tt.sizes[i])
				}
				for _, e := range c {
					seen[e]++
				}
			}
			for e, n := range seen {
				if n > 1 {
					t.Errorf("%s appears in %d clusters", e, n)
				}
			}
		})
	}
}

func TestCluster_MatchesPlainScan(t *testing.T) {
	var endpoints []*endpoint.Endpoint
	for i := 0; i < 300; i++ {
		endpoints = append(endpoints, newEndpoint(fmt.Sprintf("/route/%d", i%120)))
	}

	clusters := Cluster(endpoints)

	// Paths 0..59 occur three times, 60..119 twice.
	if len(clusters) != 120 {
		t.Fatalf("len(clusters) = %d, want 120", len(clusters))
	}
	total := 0
	for _, c := range clusters {
		total += len(c)
	}
	if total != 300 {
		t.Errorf("clustered endpoints = %d, want 300", total)
	}
}
