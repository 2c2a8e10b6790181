package lifecycle

import "fmt"

// TransitionPolicy decides whether a submission may move from one status
// to another. It is checked before a status change is committed.
type TransitionPolicy interface {
	Name() string
	Check(from, to Status) error
}

// Permissive allows any transition between known statuses. This is the
// default: operators reopen deals and correct mistakes freely.
type Permissive struct{}

func (Permissive) Name() string { return "permissive" }

func (Permissive) Check(from, to Status) error {
	if !to.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, to)
	}
	return nil
}

// ForwardOnly only allows pending -> negotiating -> success, one step at a
// time. Re-applying the current status is allowed.
type ForwardOnly struct{}

func (ForwardOnly) Name() string { return "forward_only" }

var forwardTransitions = map[Status][]Status{
	StatusPending:     {StatusPending, StatusNegotiating},
	StatusNegotiating: {StatusNegotiating, StatusSuccess},
	StatusSuccess:     {StatusSuccess},
}

func (ForwardOnly) Check(from, to Status) error {
	if !to.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, to)
	}
	for _, allowed := range forwardTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
}

// PolicyByName maps a configuration value to a policy.
func PolicyByName(name string) (TransitionPolicy, error) {
	switch name {
	case "", "permissive":
		return Permissive{}, nil
	case "forward_only":
		return ForwardOnly{}, nil
	default:
		return nil, fmt.Errorf("unknown status policy %q", name)
	}
}

// IsForward reports whether to comes after from in lifecycle order.
func IsForward(from, to Status) bool {
	return to.rank() > from.rank()
}
