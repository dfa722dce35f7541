package segment

import (
	"fmt"
	"strings"

	"tracker/libs/timeutil"
)

// IssueCode classifies a timing problem with a candidate segment.
type IssueCode string

const (
	IssueInvalidDeparture IssueCode = "invalid-departure"
	IssueInvalidArrival   IssueCode = "invalid-arrival"
	IssueTimeOrder        IssueCode = "time-order"
	IssueOverlap          IssueCode = "overlap"
)

// Issue is one validation finding. RelatedSegmentID is set for overlaps.
type Issue struct {
	Code             IssueCode `json:"code"`
	Message          string    `json:"message"`
	RelatedSegmentID string    `json:"relatedSegmentId,omitempty"`
}

// Candidate is the part of a segment the timing check needs.
type Candidate struct {
	TeamID  TeamID
	LegNo   LegNo
	DepTime string
	ArrTime string
}

// ValidateOptions tunes ValidateTiming. IgnoreID skips the segment being edited.
type ValidateOptions struct {
	IgnoreID string
}

func CandidateFromInput(in Input) Candidate {
	return Candidate{TeamID: in.TeamID, LegNo: in.LegNo, DepTime: in.DepTime, ArrTime: in.ArrTime}
}

func CandidateFromSegment(s Segment) Candidate {
	return Candidate{TeamID: s.TeamID, LegNo: s.LegNo, DepTime: s.DepTime, ArrTime: s.ArrTime}
}

// ValidateTiming checks a candidate against siblings of the same team and leg.
// Siblings must already be filtered to the candidate's group.
// Intervals are half-open, so touching endpoints never overlap.
func ValidateTiming(candidate Candidate, siblings []Segment, opts ValidateOptions) []Issue {
	var issues []Issue

	dep, depOK := timeutil.ParseISO(candidate.DepTime)
	arr, arrOK := timeutil.ParseISO(candidate.ArrTime)

	if !depOK {
		issues = append(issues, Issue{Code: IssueInvalidDeparture, Message: "Departure time must be a valid ISO 8601 string."})
	}
	if !arrOK {
		issues = append(issues, Issue{Code: IssueInvalidArrival, Message: "Arrival time must be a valid ISO 8601 string."})
	}
	if !depOK || !arrOK {
		return issues
	}

	if !arr.After(dep) {
		issues = append(issues, Issue{Code: IssueTimeOrder, Message: "Arrival must be later than departure."})
	}

	for _, other := range siblings {
		if opts.IgnoreID != "" && other.ID == opts.IgnoreID {
			continue
		}
		otherDep, ok1 := timeutil.ParseISO(other.DepTime)
		otherArr, ok2 := timeutil.ParseISO(other.ArrTime)
		if !ok1 || !ok2 {
			continue
		}
		if dep.Before(otherArr) && arr.After(otherDep) {
			issues = append(issues, Issue{
				Code:             IssueOverlap,
				Message:          fmt.Sprintf("Overlaps with %s → %s.", other.FromCity, other.ToCity),
				RelatedSegmentID: other.ID,
			})
			break
		}
	}

	return issues
}

// IssuesError joins issue messages into one error, nil when there are none.
func IssuesError(issues []Issue) error {
	if len(issues) == 0 {
		return nil
	}
	msgs := make([]string, len(issues))
	for i, issue := range issues {
		msgs[i] = fmt.Sprintf("%s: %s", issue.Code, issue.Message)
	}
	return fmt.Errorf("segment timing rejected: %s", strings.Join(msgs, "; "))
}

// Validate checks field-level constraints that do not depend on siblings.
func (in Input) Validate() error {
	var errs []string
	if !in.TeamID.Valid() {
		errs = append(errs, fmt.Sprintf("unknown team %q", in.TeamID))
	}
	if !in.LegNo.Valid() {
		errs = append(errs, fmt.Sprintf("unknown leg %d", in.LegNo))
	}
	if !in.Type.Valid() {
		errs = append(errs, fmt.Sprintf("unknown segment type %q", in.Type))
	}
	if in.Cost != nil && *in.Cost < 0 {
		errs = append(errs, "cost must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid segment input: %s", strings.Join(errs, "; "))
	}
	return nil
}
