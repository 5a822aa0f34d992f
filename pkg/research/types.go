package research

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

const (
	MinPlanItems          = 3
	MaxPlanItems          = 5
	MaxSummaryWords       = 300
	DefaultMinReportWords = 1000

	// FactTimeLayout is the time-of-day format used for Fact.Timestamp.
	FactTimeLayout = "15:04:05"
)

// ResearchPlan is produced once by the planner and is read-only afterwards.
type ResearchPlan struct {
	Topic         string   `json:"topic"`
	SearchQueries []string `json:"search_queries"`
	FocusAreas    []string `json:"focus_areas"`
}

// Validate lists every way the plan breaks its contract.
func (p ResearchPlan) Validate() []Violation {
	var v []Violation
	if strings.TrimSpace(p.Topic) == "" {
		v = append(v, Violation{Field: "topic", Reason: "must not be empty"})
	}
	v = append(v, checkListLen("search_queries", p.SearchQueries)...)
	v = append(v, checkListLen("focus_areas", p.FocusAreas)...)
	return v
}

func checkListLen(field string, items []string) []Violation {
	n := 0
	for _, item := range items {
		if strings.TrimSpace(item) != "" {
			n++
		}
	}
	if n != len(items) {
		return []Violation{{Field: field, Reason: "contains empty entries"}}
	}
	if n < MinPlanItems || n > MaxPlanItems {
		return []Violation{{
			Field:  field,
			Reason: fmt.Sprintf("has %d entries, want %d-%d", n, MinPlanItems, MaxPlanItems),
		}}
	}
	return nil
}

// clone returns a deep copy so callers cannot mutate a stored plan.
func (p ResearchPlan) clone() ResearchPlan {
	return ResearchPlan{
		Topic:         p.Topic,
		SearchQueries: append([]string(nil), p.SearchQueries...),
		FocusAreas:    append([]string(nil), p.FocusAreas...),
	}
}

// Fact is one saved finding.
type Fact struct {
	Fact       string    `json:"fact"`
	Source     string    `json:"source,omitempty"`
	Timestamp  string    `json:"timestamp"`
	RecordedAt time.Time `json:"recorded_at"`
}

// ResearchReport is the terminal artifact of a run.
type ResearchReport struct {
	Title     string   `json:"title"`
	Outline   []string `json:"outline"`
	Report    string   `json:"report"`
	Sources   []string `json:"sources"`
	WordCount int      `json:"word_count"`
}

// Validate checks the structural contract. minWords <= 0 disables the length target.
func (r ResearchReport) Validate(minWords int) []Violation {
	var v []Violation
	if strings.TrimSpace(r.Title) == "" {
		v = append(v, Violation{Field: "title", Reason: "must not be empty"})
	}
	if len(r.Outline) == 0 {
		v = append(v, Violation{Field: "outline", Reason: "must not be empty"})
	}
	if len(r.Sources) == 0 {
		v = append(v, Violation{Field: "sources", Reason: "must not be empty"})
	}
	words := CountWords(r.Report)
	if words == 0 {
		v = append(v, Violation{Field: "report", Reason: "must not be empty"})
	} else if minWords > 0 && words < minWords {
		v = append(v, Violation{
			Field:  "report",
			Reason: fmt.Sprintf("has %d words, want at least %d", words, minWords),
		})
	}
	return v
}

// CountWords splits on whitespace, matching how word_count is defined.
func CountWords(s string) int {
	return len(strings.Fields(s))
}

// TruncateWords keeps at most max whitespace-separated words of s.
func TruncateWords(s string, max int) (string, bool) {
	fields := strings.Fields(s)
	if len(fields) <= max {
		return s, false
	}
	// Walk the original text so paragraph breaks survive.
	count := 0
	inWord := false
	for i, r := range s {
		space := unicode.IsSpace(r)
		if !space && !inWord {
			count++
			if count > max {
				return strings.TrimSpace(s[:i]), true
			}
		}
		inWord = !space
	}
	return s, false
}
