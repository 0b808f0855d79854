package parser

import "strings"

// Section identifies one of the four fixed explanation sections.
// The enumeration order is fixed: it drives which missing section is
// reported first when a report is incomplete.
type Section int

const (
	SectionWhatWillHappen Section = iota
	SectionWhoIsAffected
	SectionWhatCouldGoWrong
	SectionWhatCannotBeUndone
)

// sectionHeaders are the exact (post-trim) header lines in fixed order.
var sectionHeaders = [...]string{
	SectionWhatWillHappen:     "What will happen:",
	SectionWhoIsAffected:      "Who is affected:",
	SectionWhatCouldGoWrong:   "What could go wrong:",
	SectionWhatCannotBeUndone: "What cannot be undone:",
}

// sectionKeys are the canonical section names used in exports.
var sectionKeys = [...]string{
	SectionWhatWillHappen:     "whatWillHappen",
	SectionWhoIsAffected:      "whoIsAffected",
	SectionWhatCouldGoWrong:   "whatCouldGoWrong",
	SectionWhatCannotBeUndone: "whatCannotBeUndone",
}

// Sections lists all sections in fixed enumeration order.
func Sections() []Section {
	return []Section{SectionWhatWillHappen, SectionWhoIsAffected, SectionWhatCouldGoWrong, SectionWhatCannotBeUndone}
}

// Key returns the canonical camelCase name for the section.
func (s Section) Key() string {
	if s < 0 || int(s) >= len(sectionKeys) {
		return "unknown"
	}
	return sectionKeys[s]
}

// String returns the display name for the section.
func (s Section) String() string {
	if s < 0 || int(s) >= len(sectionHeaders) {
		return "Missing details"
	}
	return strings.TrimSuffix(sectionHeaders[s], ":")
}

// ExplanationReport is a four-section plain-English consequence report.
// A report is complete iff every section has at least one item.
type ExplanationReport struct {
	WhatWillHappen     []string `json:"whatWillHappen"`
	WhoIsAffected      []string `json:"whoIsAffected"`
	WhatCouldGoWrong   []string `json:"whatCouldGoWrong"`
	WhatCannotBeUndone []string `json:"whatCannotBeUndone"`

	Incomplete      bool      `json:"isIncomplete,omitempty"`
	MissingSections []Section `json:"-"`
}

// Items returns the list for the given section.
func (r *ExplanationReport) Items(s Section) []string {
	switch s {
	case SectionWhatWillHappen:
		return r.WhatWillHappen
	case SectionWhoIsAffected:
		return r.WhoIsAffected
	case SectionWhatCouldGoWrong:
		return r.WhatCouldGoWrong
	case SectionWhatCannotBeUndone:
		return r.WhatCannotBeUndone
	}
	return nil
}

// FirstMissing returns the first empty section in fixed enumeration order.
func (r *ExplanationReport) FirstMissing() (Section, bool) {
	if len(r.MissingSections) == 0 {
		return 0, false
	}
	return r.MissingSections[0], true
}

// ParseExplanation scans model output for the four fixed section headers and
// collects subsequent "- " prefixed lines as items per section until the
// next header. Any section with zero items marks the report incomplete.
func ParseExplanation(response string) *ExplanationReport {
	report := &ExplanationReport{}

	appendItem := func(s Section, item string) {
		switch s {
		case SectionWhatWillHappen:
			report.WhatWillHappen = append(report.WhatWillHappen, item)
		case SectionWhoIsAffected:
			report.WhoIsAffected = append(report.WhoIsAffected, item)
		case SectionWhatCouldGoWrong:
			report.WhatCouldGoWrong = append(report.WhatCouldGoWrong, item)
		case SectionWhatCannotBeUndone:
			report.WhatCannotBeUndone = append(report.WhatCannotBeUndone, item)
		}
	}

	current := Section(-1)
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		matched := false
		for s, header := range sectionHeaders {
			if line == header {
				current = Section(s)
				matched = true
				break
			}
		}
		if matched {
			continue
		}

		if strings.HasPrefix(line, "- ") && current >= 0 {
			if item := strings.TrimSpace(line[2:]); item != "" {
				appendItem(current, item)
			}
		}
	}

	for _, s := range Sections() {
		if len(report.Items(s)) == 0 {
			report.MissingSections = append(report.MissingSections, s)
		}
	}
	report.Incomplete = len(report.MissingSections) > 0

	return report
}
