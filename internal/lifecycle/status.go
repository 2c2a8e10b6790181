// Package lifecycle defines the submission status taxonomy and the rules
// for moving a submission between statuses.
package lifecycle

import (
	"errors"
	"fmt"
	"strings"
)

// Status is the lifecycle tag carried by every submission.
type Status string

const (
	StatusPending     Status = "pending"
	StatusNegotiating Status = "negotiating"
	StatusSuccess     Status = "success"
)

// Category is the visual category an operator-facing view uses for a status.
type Category string

const (
	CategoryWarning Category = "warning"
	CategoryInfo    Category = "info"
	CategorySuccess Category = "success"
)

var (
	// ErrUnknownStatus reports a status outside the enumeration.
	ErrUnknownStatus = errors.New("unknown submission status")
	// ErrIllegalTransition reports a transition the active policy forbids.
	ErrIllegalTransition = errors.New("illegal status transition")
)

// Presentation describes how a status is shown to the operator.
type Presentation struct {
	Label    string   `json:"label"`
	Category Category `json:"category"`
}

var presentations = map[Status]Presentation{
	StatusPending:     {Label: "Pending", Category: CategoryWarning},
	StatusNegotiating: {Label: "Negotiating", Category: CategoryInfo},
	StatusSuccess:     {Label: "Success", Category: CategorySuccess},
}

// All returns the statuses in lifecycle order.
func All() []Status {
	return []Status{StatusPending, StatusNegotiating, StatusSuccess}
}

// Initial is the status assigned at creation.
func Initial() Status { return StatusPending }

// ParseStatus validates and normalizes s.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
	}
	return st, nil
}

// Valid reports whether s is one of the three known statuses.
func (s Status) Valid() bool {
	_, ok := presentations[s]
	return ok
}

// Presentation returns the label and category of s. Unknown statuses get
// their raw value as label.
func (s Status) Presentation() Presentation {
	if p, ok := presentations[s]; ok {
		return p
	}
	return Presentation{Label: string(s), Category: CategoryWarning}
}

// Label is shorthand for s.Presentation().Label.
func (s Status) Label() string { return s.Presentation().Label }

func (s Status) String() string { return string(s) }

func (s Status) rank() int {
	for i, st := range All() {
		if st == s {
			return i
		}
	}
	return -1
}
