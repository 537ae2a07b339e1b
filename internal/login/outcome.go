// File: internal/login/outcome.go
package login

import (
	"errors"
	"fmt"
)

// Classification is the verdict on a page after submitting credentials.
type Classification int

const (
	Failure Classification = iota
	Success
	// Indeterminate means the page changed but carried no explicit signal.
	Indeterminate
)

func (c Classification) String() string {
	switch c {
	case Success:
		return "success"
	case Indeterminate:
		return "indeterminate"
	default:
		return "failure"
	}
}

// Kind categorizes why an attempt ended the way it did.
type Kind int

const (
	KindNone Kind = iota
	KindInputInvalid
	KindNoLoginPageFound
	KindFieldInteractionFailed
	KindRejected
	KindSessionFatal
)

func (k Kind) String() string {
	switch k {
	case KindInputInvalid:
		return "input_invalid"
	case KindNoLoginPageFound:
		return "no_login_page_found"
	case KindFieldInteractionFailed:
		return "field_interaction_failed"
	case KindRejected:
		return "rejected"
	case KindSessionFatal:
		return "session_fatal"
	default:
		return "none"
	}
}

// Error carries a Kind alongside the underlying cause.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the Kind from err, or KindNone.
func KindOf(err error) Kind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return KindNone
}

// Outcome is the single result of one Controller.Run.
type Outcome struct {
	Classification Classification
	Kind           Kind
	Reason         string
	// ObservedURL is the page URL when the attempt was classified.
	ObservedURL string
	// TriedURLs counts candidate URLs navigated, in order.
	TriedURLs int
	// SoftSuccess records whether an Indeterminate verdict counts as success.
	SoftSuccess bool
}

// Succeeded applies the indeterminate policy to the classification.
func (o Outcome) Succeeded() bool {
	return o.Classification == Success || (o.Classification == Indeterminate && o.SoftSuccess)
}
