// Package stats summarizes endpoint collections across one or more projects.
package stats

import (
	"sort"

	"github.com/PentesterFlow/routecheck/internal/endpoint"
)

// Project holds the statistics of one endpoint collection.
type Project struct {
	Name string `json:"name"`
	// DistinctEndpoints counts root endpoints; TotalEndpoints includes variants.
	DistinctEndpoints int `json:"distinct_endpoints"`
	TotalEndpoints    int `json:"total_endpoints"`
	MissingStartLine  int `json:"missing_start_line"`
	MissingEndLine    int `json:"missing_end_line"`
	SameLineRange     int `json:"same_line_range"`
	// DistinctParameters counts parameters of root endpoints only.
	DistinctParameters int                        `json:"distinct_parameters"`
	TotalParameters    int                        `json:"total_parameters"`
	WithDataType       int                        `json:"with_data_type"`
	WithAcceptedValues int                        `json:"with_accepted_values"`
	WithParamType      int                        `json:"with_param_type"`
	ParamTypes         map[endpoint.ParamType]int `json:"param_types"`
	Duplicates         int                        `json:"duplicates"`
	Valid              bool                       `json:"valid"`
}

// Variants returns the number of variant endpoints.
func (p Project) Variants() int {
	return p.TotalEndpoints - p.DistinctEndpoints
}

// SortedParamTypes returns the observed param types in name order.
func (p Project) SortedParamTypes() []endpoint.ParamType {
	types := make([]endpoint.ParamType, 0, len(p.ParamTypes))
	for t := range p.ParamTypes {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Collect computes statistics for a collection of root endpoints.
func Collect(name string, roots []*endpoint.Endpoint) Project {
	flat := endpoint.Flatten(roots)
	p := Project{
		Name:              name,
		DistinctEndpoints: len(roots),
		TotalEndpoints:    len(flat),
		ParamTypes:        make(map[endpoint.ParamType]int),
	}

	for _, e := range flat {
		if e.StartingLine < 0 {
			p.MissingStartLine++
		}
		if e.EndingLine < 0 {
			p.MissingEndLine++
		}
		if e.StartingLine >= 0 && e.StartingLine == e.EndingLine {
			p.SameLineRange++
		}
		p.TotalParameters += len(e.Parameters)
	}

	for _, e := range roots {
		if e == nil {
			continue
		}
		for _, param := range e.Parameters {
			if param == nil {
				continue
			}
			p.DistinctParameters++
			if param.DataType != "" {
				p.WithDataType++
			}
			if param.ParamType != endpoint.Unknown {
				p.WithParamType++
			}
			if len(param.AcceptedValues) > 0 {
				p.WithAcceptedValues++
			}
			p.ParamTypes[param.ParamType]++
		}
	}
	return p
}

// Totals aggregates every project of a run.
type Totals struct {
	Projects               int      `json:"projects"`
	ProjectsWithEndpoints  int      `json:"projects_with_endpoints"`
	ProjectsWithDuplicates int      `json:"projects_with_duplicates"`
	ProjectsFailed         int      `json:"projects_failed"`
	DistinctEndpoints      int      `json:"distinct_endpoints"`
	TotalEndpoints         int      `json:"total_endpoints"`
	DistinctParameters     int      `json:"distinct_parameters"`
	TotalParameters        int      `json:"total_parameters"`
	MissingEndpoints       []string `json:"missing_endpoints,omitempty"`
}

// Accumulator collects per-project statistics for a run. It is owned by a
// single run and not safe for concurrent use.
type Accumulator struct {
	projects []Project
	totals   Totals
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Add records a project.
func (a *Accumulator) Add(p Project) {
	a.projects = append(a.projects, p)

	a.totals.Projects++
	if p.TotalEndpoints > 0 {
		a.totals.ProjectsWithEndpoints++
	} else {
		a.totals.MissingEndpoints = append(a.totals.MissingEndpoints, p.Name)
	}
	if p.Duplicates > 0 {
		a.totals.ProjectsWithDuplicates++
	}
	if !p.Valid {
		a.totals.ProjectsFailed++
	}
	a.totals.DistinctEndpoints += p.DistinctEndpoints
	a.totals.TotalEndpoints += p.TotalEndpoints
	a.totals.DistinctParameters += p.DistinctParameters
	a.totals.TotalParameters += p.TotalParameters
}

// Projects returns the recorded projects in insertion order.
func (a *Accumulator) Projects() []Project {
	return append([]Project(nil), a.projects...)
}

// Totals returns the aggregated totals.
func (a *Accumulator) Totals() Totals {
	t := a.totals
	t.MissingEndpoints = append([]string(nil), a.totals.MissingEndpoints...)
	return t
}
