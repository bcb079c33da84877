// Package coverage parses Cobertura XML reports and uploads them to the
// coverage tracking service.
package coverage

import (
	"encoding/xml"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Report is the subset of a Cobertura document the tooling cares about.
type Report struct {
	XMLName      xml.Name  `xml:"coverage"`
	LineRate     float64   `xml:"line-rate,attr"`
	BranchRate   float64   `xml:"branch-rate,attr"`
	LinesCovered int64     `xml:"lines-covered,attr"`
	LinesValid   int64     `xml:"lines-valid,attr"`
	Timestamp    string    `xml:"timestamp,attr"`
	Packages     []Package `xml:"packages>package"`
}

// Package is one covered package within the report.
type Package struct {
	Name     string  `xml:"name,attr"`
	LineRate float64 `xml:"line-rate,attr"`
}

// Parse decodes a Cobertura XML document.
func Parse(data []byte) (Report, error) {
	var rep Report
	if err := xml.Unmarshal(data, &rep); err != nil {
		return Report{}, fmt.Errorf("parsing cobertura report: %w", err)
	}
	if rep.LineRate < 0 || rep.LineRate > 1 {
		return Report{}, fmt.Errorf("cobertura report: line-rate %v out of range", rep.LineRate)
	}
	return rep, nil
}

// ParseFile reads and decodes the report at path.
func ParseFile(path string) (Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Report{}, fmt.Errorf("reading coverage report: %w", err)
	}
	return Parse(data)
}

// Percent returns the overall line coverage as a percentage.
func (r Report) Percent() float64 {
	return r.LineRate * 100
}

// Markdown renders the report summary as a table for check runs and PR
// comments. Packages are listed worst-first so regressions surface at the
// top.
func (r Report) Markdown() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "### Coverage: %.1f%%\n\n", r.Percent())
	fmt.Fprintf(&sb, "%d of %d lines covered\n\n", r.LinesCovered, r.LinesValid)

	if len(r.Packages) == 0 {
		return sb.String()
	}

	pkgs := make([]Package, len(r.Packages))
	copy(pkgs, r.Packages)
	sort.SliceStable(pkgs, func(i, j int) bool { return pkgs[i].LineRate < pkgs[j].LineRate })

	sb.WriteString("| Package | Coverage |\n")
	sb.WriteString("|---------|----------|\n")
	for _, p := range pkgs {
		fmt.Fprintf(&sb, "| %s | %.1f%% |\n", p.Name, p.LineRate*100)
	}
	return sb.String()
}
