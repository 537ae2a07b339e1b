// File: internal/mocks/mocks.go
package mocks

import (
	"context"
	"encoding/json"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/keepalive-cli/internal/accounts"
	"github.com/xkilldash9x/keepalive-cli/internal/browser"
	"github.com/xkilldash9x/keepalive-cli/internal/login"
	"github.com/xkilldash9x/keepalive-cli/internal/notify"
	"github.com/xkilldash9x/keepalive-cli/internal/report"
)

// -- Browser Session Mock --

// MockSession mocks browser.Session.
type MockSession struct {
	mock.Mock
}

var _ browser.Session = (*MockSession)(nil)

func (m *MockSession) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	args := m.Called(ctx, url, timeout)
	return args.Error(0)
}

func (m *MockSession) FindElement(ctx context.Context, strategy browser.Strategy, selector string, timeout time.Duration) (*browser.Element, error) {
	args := m.Called(ctx, strategy, selector, timeout)
	el, _ := args.Get(0).(*browser.Element)
	return el, args.Error(1)
}

func (m *MockSession) Click(ctx context.Context, el *browser.Element) error {
	return m.Called(ctx, el).Error(0)
}

func (m *MockSession) Clear(ctx context.Context, el *browser.Element) error {
	return m.Called(ctx, el).Error(0)
}

func (m *MockSession) TypeInto(ctx context.Context, el *browser.Element, text string) error {
	return m.Called(ctx, el, text).Error(0)
}

func (m *MockSession) PressEnter(ctx context.Context, el *browser.Element) error {
	return m.Called(ctx, el).Error(0)
}

func (m *MockSession) EvaluateScript(ctx context.Context, src string, args ...interface{}) (json.RawMessage, error) {
	called := m.Called(ctx, src, args)
	raw, _ := called.Get(0).(json.RawMessage)
	return raw, called.Error(1)
}

func (m *MockSession) CurrentURL(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockSession) Title(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockSession) Content(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockSession) Screenshot(ctx context.Context, path string) error {
	return m.Called(ctx, path).Error(0)
}

func (m *MockSession) Close(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// -- Login Attempt Mock --

// MockAttempter mocks the per-account login step of the batch runner.
type MockAttempter struct {
	mock.Mock
}

func (m *MockAttempter) Run(ctx context.Context, s browser.Session, cred accounts.Credential) (login.Outcome, error) {
	args := m.Called(ctx, s, cred)
	return args.Get(0).(login.Outcome), args.Error(1)
}

// -- Reporting Mocks --

// MockReporter mocks the end-of-run reporter.
type MockReporter struct {
	mock.Mock
}

func (m *MockReporter) Report(ctx context.Context, run report.Run) error {
	return m.Called(ctx, run).Error(0)
}

// MockRecorder mocks the result history store.
type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) Record(ctx context.Context, runID string, result report.AccountResult) error {
	return m.Called(ctx, runID, result).Error(0)
}

// MockNotifier mocks notify.Notifier.
type MockNotifier struct {
	mock.Mock
}

var _ notify.Notifier = (*MockNotifier)(nil)

func (m *MockNotifier) Send(ctx context.Context, n notify.Notification) error {
	return m.Called(ctx, n).Error(0)
}
