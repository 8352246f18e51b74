package rules

import (
	"errors"
	"fmt"
)

// Code classifies a rejected action.
type Code string

const (
	CodeNotYourTurn           Code = "not_your_turn"
	CodeNotFound              Code = "not_found"
	CodeInsufficientResources Code = "insufficient_resources"
	CodeInvalidTarget         Code = "invalid_target"
	CodeWrongPhase            Code = "wrong_phase"
	CodeOncePerTurn           Code = "once_per_turn"
	CodeRequiresClues         Code = "requires_clues"
)

// Rejection is the typed result of a failed validation. It never implies a
// state change: rejected actions leave the match untouched.
type Rejection struct {
	Code        Code
	Reason      string
	Suggestions []string
	Details     map[string]string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s: %s", r.Code, r.Reason)
}

// AsRejection unwraps err into a *Rejection.
func AsRejection(err error) (*Rejection, bool) {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}

func reject(code Code, reason string, suggestions ...string) *Rejection {
	return &Rejection{Code: code, Reason: reason, Suggestions: suggestions}
}
