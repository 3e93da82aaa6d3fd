package maintenance

import (
	"errors"
	"fmt"
	"time"

	"safemaint-backend/internal/model"
)

// ErrIllegalTransition is returned when an action is not allowed from the
// session's current status.
var ErrIllegalTransition = errors.New("illegal session transition")

// Action is a lifecycle operation on a session.
type Action string

const (
	ActionPause    Action = "pause"
	ActionPartial  Action = "partial"
	ActionResume   Action = "resume"
	ActionComplete Action = "complete"
)

// Next returns the status a session moves to when action is applied from
// status. Complete has no successor status: the session is removed.
func Next(status model.SessionStatus, action Action) (model.SessionStatus, error) {
	switch action {
	case ActionPause:
		if status == model.StatusRunning {
			return model.StatusPaused, nil
		}
	case ActionPartial:
		if status == model.StatusRunning {
			return model.StatusWaiting, nil
		}
	case ActionResume:
		if status == model.StatusPaused || status == model.StatusWaiting {
			return model.StatusRunning, nil
		}
	case ActionComplete:
		switch status {
		case model.StatusRunning, model.StatusPaused, model.StatusWaiting:
			return "", nil
		}
	}
	return "", fmt.Errorf("%w: %s from %q", ErrIllegalTransition, action, status)
}

// fold banks the running interval into AccumulatedTime and clears
// CurrentSessionStart. Both happen in the same write.
func fold(m *model.ActiveMaintenance, now time.Time) {
	if m.Status == model.StatusRunning && m.CurrentSessionStart != nil {
		if delta := now.Sub(*m.CurrentSessionStart).Milliseconds(); delta > 0 {
			m.AccumulatedTime += delta
		}
	}
	m.CurrentSessionStart = nil
}
