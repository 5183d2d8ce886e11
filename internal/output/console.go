package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/PentesterFlow/routecheck/internal/endpoint"
	"github.com/PentesterFlow/routecheck/internal/metrics"
	"github.com/PentesterFlow/routecheck/internal/stats"
)

// Printer writes the human-readable run output.
type Printer struct {
	w      io.Writer
	ok     *color.Color
	fail   *color.Color
	notice *color.Color
}

// NewPrinter creates a printer. Colors follow the terminal unless noColor.
func NewPrinter(w io.Writer, noColor bool) *Printer {
	p := &Printer{
		w:      w,
		ok:     color.New(color.FgGreen),
		fail:   color.New(color.FgRed),
		notice: color.New(color.FgYellow),
	}
	if noColor {
		for _, c := range []*color.Color{p.ok, p.fail, p.notice} {
			c.DisableColor()
		}
	}
	return p
}

func (p *Printer) println(s string) {
	fmt.Fprintln(p.w, s)
}

// Listing prints every endpoint of a project followed by the count line.
func (p *Printer) Listing(roots []*endpoint.Endpoint) {
	for _, line := range ListingLines(roots) {
		p.println(line)
	}
	p.println(ListingSummary(roots))
}

// Validation prints the serialization verdict.
func (p *Printer) Validation(valid bool) {
	if valid {
		p.println(p.ok.Sprint("Successfully validated serialization for these endpoints"))
		return
	}
	p.println(p.fail.Sprint("Failed to validate serialization for at least one of these endpoints"))
}

// Duplicates prints a table of duplicate clusters.
func (p *Printer) Duplicates(clusters []DuplicateCluster) {
	if len(clusters) == 0 {
		return
	}
	p.println(p.notice.Sprintf("Found %d duplicated endpoints:", len(clusters)))

	table := tablewriter.NewWriter(p.w)
	table.SetHeader([]string{"Size", "Endpoint"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetAutoWrapText(false)
	table.SetColumnAlignment([]int{tablewriter.ALIGN_CENTER, tablewriter.ALIGN_LEFT})
	for _, c := range clusters {
		for i, e := range c.Endpoints {
			size := ""
			if i == 0 {
				size = strconv.Itoa(c.Size)
			}
			table.Append([]string{size, e})
		}
	}
	table.Render()
}

// Auth prints the login outcome.
func (p *Printer) Auth(a *AuthSummary) {
	if a == nil {
		return
	}
	if a.Authenticated && a.Status < 400 {
		msg := "Successfully authenticated"
		if a.Reused {
			msg += " (reused stored session)"
		}
		p.println(p.ok.Sprint(msg))
		return
	}
	p.println(p.notice.Sprint("Warning - unable to authorize against server"))
}

// Probe prints the reachability outcome of a project.
func (p *Printer) Probe(server string, s *ProbeSummary) {
	if s == nil {
		return
	}
	p.println("Testing endpoints against server at: " + server)
	for _, name := range s.Failed {
		p.println(p.fail.Sprint("Failed: " + name))
	}

	line := s.Queryable()
	if s.Unreachable == 0 {
		p.println(p.ok.Sprint(line))
	} else {
		p.println(p.notice.Sprint(line))
	}
	p.println(fmt.Sprintf("(%d endpoints skipped since they had a wildcard in the URL)", s.Skipped))
	if s.OutOfScope > 0 {
		p.println(fmt.Sprintf("(%d endpoints skipped since they were out of scope)", s.OutOfScope))
	}
}

// StatsLines renders the per-project statistics.
func StatsLines(s stats.Project) []string {
	lines := []string{
		fmt.Sprintf("%d endpoints were missing code start line", s.MissingStartLine),
		fmt.Sprintf("%d endpoints were missing code end line", s.MissingEndLine),
		fmt.Sprintf("%d endpoints had the same code start and end line", s.SameLineRange),
		fmt.Sprintf("Generated %d distinct parameters", s.DistinctParameters),
		fmt.Sprintf("Generated %d total parameters", s.TotalParameters),
		fmt.Sprintf("- %d/%d have their data type", s.WithDataType, s.DistinctParameters),
		fmt.Sprintf("- %d/%d have a list of accepted values", s.WithAcceptedValues, s.DistinctParameters),
		fmt.Sprintf("- %d/%d have their parameter type", s.WithParamType, s.DistinctParameters),
	}
	for _, t := range s.SortedParamTypes() {
		lines = append(lines, fmt.Sprintf("--- %s: %d", t, s.ParamTypes[t]))
	}
	return lines
}

// Stats prints the per-project statistics.
func (p *Printer) Stats(s stats.Project) {
	for _, line := range StatsLines(s) {
		p.println(line)
	}
}

// TotalsLines renders the end-of-run summary.
func TotalsLines(t stats.Totals) []string {
	lines := []string{
		"-- DONE --",
		fmt.Sprintf("%d projects had duplicate endpoints", t.ProjectsWithDuplicates),
		fmt.Sprintf("Generated %d distinct endpoints", t.DistinctEndpoints),
		fmt.Sprintf("Generated %d total endpoints", t.TotalEndpoints),
		fmt.Sprintf("Generated %d distinct parameters", t.DistinctParameters),
		fmt.Sprintf("Generated %d total parameters", t.TotalParameters),
		fmt.Sprintf("%d/%d projects had endpoints generated", t.ProjectsWithEndpoints, t.Projects),
	}
	if len(t.MissingEndpoints) > 0 {
		lines = append(lines, "The following projects were missing endpoints:")
		for _, name := range t.MissingEndpoints {
			lines = append(lines, "--- "+name)
		}
	}
	return lines
}

// MetricsLines renders the request counters of a probed run.
func MetricsLines(m *metrics.Snapshot) []string {
	if m == nil || m.RequestsTotal == 0 {
		return nil
	}
	codes := make([]string, 0, len(m.StatusCodes))
	for _, code := range m.SortedStatusCodes() {
		codes = append(codes, fmt.Sprintf("%d=%d", code, m.StatusCodes[code]))
	}
	return []string{
		fmt.Sprintf("Sent %d requests, average response time %v", m.RequestsTotal, m.AverageResponseTime),
		fmt.Sprintf("Status codes: %s", strings.Join(codes, ", ")),
		fmt.Sprintf("Error rate: %.1f%%", m.ErrorRate()*100),
	}
}

// Summary prints a per-project table followed by the run totals.
func (p *Printer) Summary(r *Report) {
	if len(r.Projects) > 1 {
		table := tablewriter.NewWriter(p.w)
		table.SetHeader([]string{"Project", "Endpoints", "Variants", "Valid", "Duplicates", "Queryable"})
		table.SetBorder(false)
		table.SetCenterSeparator("")
		table.SetAutoWrapText(false)
		for _, proj := range r.Projects {
			queryable := "-"
			if proj.Probe != nil {
				queryable = fmt.Sprintf("%d/%d", proj.Probe.Reachable, proj.Probe.Reachable+proj.Probe.Unreachable)
			}
			table.Append([]string{
				proj.Name,
				strconv.Itoa(proj.Stats.DistinctEndpoints),
				strconv.Itoa(proj.Stats.Variants()),
				strconv.FormatBool(proj.Valid),
				strconv.Itoa(len(proj.Duplicates)),
				queryable,
			})
		}
		table.Render()
	}

	for _, line := range TotalsLines(r.Totals) {
		p.println(line)
	}
	for _, line := range MetricsLines(r.Metrics) {
		p.println(line)
	}
}

// Project prints everything known about one project.
func (p *Printer) Project(server string, proj ProjectReport, roots []*endpoint.Endpoint) {
	if proj.Error != "" {
		p.println(p.fail.Sprintf("%s: %s", proj.Name, proj.Error))
		return
	}
	p.Listing(roots)
	p.Validation(proj.Valid)
	p.Duplicates(proj.Duplicates)
	p.Probe(server, proj.Probe)
	p.Stats(proj.Stats)
}
