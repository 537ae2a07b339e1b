// File: internal/login/interactor.go
package login

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/keepalive-cli/internal/browser"
	"github.com/xkilldash9x/keepalive-cli/internal/pacing"
)

const (
	// fillScript writes the value directly and fires the events that
	// client-side validation listens for.
	fillScript = `(el, value) => {
	el.focus();
	el.value = value;
	el.dispatchEvent(new Event('input', { bubbles: true }));
	el.dispatchEvent(new Event('change', { bubbles: true }));
	return true;
}`
	// clickScript bypasses the visibility and occlusion checks of a native click.
	clickScript = `(el) => { el.click(); return true; }`
)

// SubmitMethod records which path actually submitted the form.
type SubmitMethod string

const (
	SubmitClick       SubmitMethod = "click"
	SubmitScriptClick SubmitMethod = "script_click"
	SubmitEnterKey    SubmitMethod = "enter_key"
)

// Interactor fills fields and submits forms with fallbacks for uncooperative markup.
type Interactor struct {
	logger     *zap.Logger
	settle     time.Duration
	postSubmit time.Duration
}

// NewInteractor creates an Interactor that pauses settle after each fill and
// postSubmit after the submit.
func NewInteractor(logger *zap.Logger, settle, postSubmit time.Duration) *Interactor {
	return &Interactor{
		logger:     logger.Named("interactor"),
		settle:     settle,
		postSubmit: postSubmit,
	}
}

// Fill replaces the element's value with text. Native input is tried first;
// a script write is the fallback.
func (i *Interactor) Fill(ctx context.Context, s browser.Session, el *browser.Element, text string) error {
	nativeErr := i.fillNative(ctx, s, el, text)
	if nativeErr == nil {
		return pacing.Sleep(ctx, i.settle)
	}
	if fatal(nativeErr) {
		return nativeErr
	}

	i.logger.Debug("Native fill failed, falling back to script write",
		zap.Stringer("element", el), zap.Error(nativeErr))
	if _, err := s.EvaluateScript(ctx, fillScript, el, text); err != nil {
		if fatal(err) {
			return err
		}
		return &Error{Kind: KindFieldInteractionFailed, Err: fmt.Errorf("fill %s: %w (native: %v)", el, err, nativeErr)}
	}
	return pacing.Sleep(ctx, i.settle)
}

func (i *Interactor) fillNative(ctx context.Context, s browser.Session, el *browser.Element, text string) error {
	if err := s.Click(ctx, el); err != nil {
		return fmt.Errorf("focus: %w", err)
	}
	if err := s.Clear(ctx, el); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	if err := s.TypeInto(ctx, el, text); err != nil {
		return fmt.Errorf("type: %w", err)
	}
	return nil
}

// Submit clicks button, falling back to a script click. When button is nil
// the Enter key is sent to lastField instead.
func (i *Interactor) Submit(ctx context.Context, s browser.Session, button, lastField *browser.Element) (SubmitMethod, error) {
	method, err := i.submit(ctx, s, button, lastField)
	if err != nil {
		return method, err
	}
	i.logger.Debug("Form submitted", zap.String("method", string(method)))
	return method, pacing.Sleep(ctx, i.postSubmit)
}

func (i *Interactor) submit(ctx context.Context, s browser.Session, button, lastField *browser.Element) (SubmitMethod, error) {
	if button == nil {
		if lastField == nil {
			return SubmitEnterKey, &Error{Kind: KindFieldInteractionFailed, Err: errors.New("no submit control and no field to press Enter in")}
		}
		if err := s.PressEnter(ctx, lastField); err != nil {
			if fatal(err) {
				return SubmitEnterKey, err
			}
			return SubmitEnterKey, &Error{Kind: KindFieldInteractionFailed, Err: fmt.Errorf("press enter: %w", err)}
		}
		return SubmitEnterKey, nil
	}

	clickErr := s.Click(ctx, button)
	if clickErr == nil {
		return SubmitClick, nil
	}
	if fatal(clickErr) {
		return SubmitClick, clickErr
	}

	i.logger.Debug("Native click failed, falling back to script click",
		zap.Stringer("element", button), zap.Error(clickErr))
	if _, err := s.EvaluateScript(ctx, clickScript, button); err != nil {
		if fatal(err) {
			return SubmitScriptClick, err
		}
		return SubmitScriptClick, &Error{Kind: KindFieldInteractionFailed, Err: fmt.Errorf("submit %s: %w (native: %v)", button, err, clickErr)}
	}
	return SubmitScriptClick, nil
}

// fatal reports errors that must abort the attempt instead of triggering a fallback.
func fatal(err error) bool {
	return errors.Is(err, browser.ErrSessionFatal) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
