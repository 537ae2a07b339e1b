// File: internal/login/fake_session_test.go
package login

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/xkilldash9x/keepalive-cli/internal/browser"
)

// fakePage is a synthetic document: which locators match and what the page
// turns into once the form is submitted.
type fakePage struct {
	title    string
	content  string
	elements map[Locator]bool
	// submitTo is the URL the page moves to after a submit. Empty means stay.
	submitTo string
}

func page(title, content string, locs ...Locator) *fakePage {
	p := &fakePage{title: title, content: content, elements: map[Locator]bool{}}
	for _, l := range locs {
		p.elements[l] = true
	}
	return p
}

// fakeSession implements browser.Session over a map of URL to fakePage.
type fakeSession struct {
	mu sync.Mutex

	pages      map[string]*fakePage
	currentURL string

	navigations  []string
	lookups      []Locator
	typed        map[string]string
	scripts      []string
	enterPresses int
	clicks       []string

	// navErrs queues errors returned by Navigate for a URL, one per call.
	navErrs map[string][]error
	// failNative makes Click/Clear/TypeInto fail for these selectors.
	failNative map[string]bool
	// failScript makes EvaluateScript fail.
	failScript bool
	// fatalAfterNav makes every call fatal once this many navigations happened. Zero disables.
	fatalAfterNav int
	closed        bool
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		pages:      map[string]*fakePage{},
		typed:      map[string]string{},
		navErrs:    map[string][]error{},
		failNative: map[string]bool{},
	}
}

func (f *fakeSession) current() *fakePage {
	if p, ok := f.pages[f.currentURL]; ok {
		return p
	}
	return page("", "")
}

func (f *fakeSession) checkFatal() error {
	if f.closed {
		return fmt.Errorf("%w: closed", browser.ErrSessionFatal)
	}
	if f.fatalAfterNav > 0 && len(f.navigations) >= f.fatalAfterNav {
		return fmt.Errorf("%w: target crashed", browser.ErrSessionFatal)
	}
	return nil
}

func (f *fakeSession) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.navigations = append(f.navigations, url)
	if err := f.checkFatal(); err != nil {
		return err
	}
	if queued := f.navErrs[url]; len(queued) > 0 {
		f.navErrs[url] = queued[1:]
		return queued[0]
	}
	f.currentURL = url
	return nil
}

func (f *fakeSession) FindElement(ctx context.Context, strategy browser.Strategy, selector string, timeout time.Duration) (*browser.Element, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkFatal(); err != nil {
		return nil, err
	}
	loc := Locator{Strategy: strategy, Selector: selector}
	f.lookups = append(f.lookups, loc)
	if !f.current().elements[loc] {
		return nil, browser.ErrElementNotFound
	}
	return &browser.Element{Strategy: strategy, Selector: selector, Ref: selector}, nil
}

func (f *fakeSession) native(el *browser.Element, op string) error {
	if err := f.checkFatal(); err != nil {
		return err
	}
	if f.failNative[el.Selector] {
		return fmt.Errorf("%s %s: element is not visible", op, el.Selector)
	}
	return nil
}

func (f *fakeSession) submit() {
	if to := f.current().submitTo; to != "" {
		f.currentURL = to
	}
}

func (f *fakeSession) Click(ctx context.Context, el *browser.Element) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.native(el, "click"); err != nil {
		return err
	}
	f.clicks = append(f.clicks, el.Selector)
	if el.Strategy == browser.StrategyText || isSubmitSelector(el.Selector) {
		f.submit()
	}
	return nil
}

func isSubmitSelector(sel string) bool {
	switch sel {
	case "#submit", `button[type="submit"]`, `input[type="submit"]`, "button.button--primary":
		return true
	}
	return false
}

func (f *fakeSession) Clear(ctx context.Context, el *browser.Element) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.native(el, "clear"); err != nil {
		return err
	}
	f.typed[el.Selector] = ""
	return nil
}

func (f *fakeSession) TypeInto(ctx context.Context, el *browser.Element, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.native(el, "type"); err != nil {
		return err
	}
	f.typed[el.Selector] += text
	return nil
}

func (f *fakeSession) PressEnter(ctx context.Context, el *browser.Element) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkFatal(); err != nil {
		return err
	}
	f.enterPresses++
	f.submit()
	return nil
}

func (f *fakeSession) EvaluateScript(ctx context.Context, src string, args ...interface{}) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkFatal(); err != nil {
		return nil, err
	}
	f.scripts = append(f.scripts, src)
	if f.failScript {
		return nil, errors.New("script threw")
	}
	switch src {
	case fillScript:
		el := args[0].(*browser.Element)
		f.typed[el.Selector] = args[1].(string)
	case clickScript:
		f.submit()
	}
	return json.RawMessage(`true`), nil
}

func (f *fakeSession) CurrentURL(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.currentURL, f.checkFatal()
}

func (f *fakeSession) Title(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current().title, f.checkFatal()
}

func (f *fakeSession) Content(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current().content, f.checkFatal()
}

func (f *fakeSession) Screenshot(ctx context.Context, path string) error {
	return errors.New("screenshots unsupported in fake")
}

func (f *fakeSession) Close(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

var _ browser.Session = (*fakeSession)(nil)
