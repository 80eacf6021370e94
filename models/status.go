package models

import "time"

// Section and run outcomes recorded in the status document.
const (
	OutcomeSuccess   = "success"
	OutcomeFailed    = "failed"
	OutcomeCompleted = "completed"
)

// SectionOutcome records how one listing section fared during a run.
type SectionOutcome struct {
	Section        string `json:"section"`
	Outcome        string `json:"outcome"`
	RecipesScraped int    `json:"recipesScraped"`
	Error          string `json:"error,omitempty"`
}

// RunStatus is the diagnostic document written at the end of every run.
type RunStatus struct {
	StartTime     time.Time        `json:"startTime"`
	EndTime       time.Time        `json:"endTime"`
	Outcome       string           `json:"outcome"`
	Error         string           `json:"error,omitempty"`
	TotalRecipes  int              `json:"totalRecipes"`
	TotalDetails  int              `json:"totalDetails"`
	DetailsFailed int              `json:"detailsFailed"`
	Sections      []SectionOutcome `json:"sections"`
}

// AddSection appends a section outcome in run order.
func (s *RunStatus) AddSection(section, outcome string, count int, err error) {
	entry := SectionOutcome{
		Section:        section,
		Outcome:        outcome,
		RecipesScraped: count,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	s.Sections = append(s.Sections, entry)
}

// Section returns the recorded outcome for a section, if any.
func (s *RunStatus) Section(name string) (SectionOutcome, bool) {
	for _, entry := range s.Sections {
		if entry.Section == name {
			return entry, true
		}
	}
	return SectionOutcome{}, false
}
