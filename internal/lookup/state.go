package lookup

import "errors"

// ErrInFlight is returned when a lookup is submitted while another one for
// the same owner is still running.
var ErrInFlight = errors.New("lookup already in progress")

// Status is the lifecycle position of a Tracker.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusSearching Status = "searching"
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
)

// Tracker holds the lookup state for one owner: the current status, the
// latest successful outcome and the latest failure message. It is not safe
// for concurrent use; its owner serialises access.
type Tracker struct {
	status  Status
	current *Outcome
	message string
}

// Status returns the current status. The zero Tracker is idle.
func (t *Tracker) Status() Status {
	if t.status == "" {
		return StatusIdle
	}
	return t.status
}

// Current returns the latest successful outcome, or nil.
func (t *Tracker) Current() *Outcome {
	return t.current
}

// Message returns the failure message of the latest lookup, or "".
func (t *Tracker) Message() string {
	return t.message
}

// Begin moves to Searching. It fails with ErrInFlight if already searching.
func (t *Tracker) Begin() error {
	if t.Status() == StatusSearching {
		return ErrInFlight
	}
	t.status = StatusSearching
	t.message = ""
	return nil
}

// Succeed replaces the current outcome.
func (t *Tracker) Succeed(out *Outcome) {
	t.status = StatusSuccess
	t.current = out
	t.message = ""
}

// Fail records the failure message. The previous outcome is kept.
func (t *Tracker) Fail(err error) {
	t.status = StatusFailed
	t.message = Message(err)
}
