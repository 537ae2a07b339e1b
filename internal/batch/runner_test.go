// File: internal/batch/runner_test.go
package batch_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/keepalive-cli/internal/accounts"
	"github.com/xkilldash9x/keepalive-cli/internal/batch"
	"github.com/xkilldash9x/keepalive-cli/internal/browser"
	"github.com/xkilldash9x/keepalive-cli/internal/config"
	"github.com/xkilldash9x/keepalive-cli/internal/login"
	"github.com/xkilldash9x/keepalive-cli/internal/mocks"
	"github.com/xkilldash9x/keepalive-cli/internal/report"
)

var noDelay = config.BatchConfig{}

func creds(n int) []accounts.Credential {
	out := make([]accounts.Credential, n)
	for i := range out {
		name := fmt.Sprintf("user%d", i+1)
		out[i] = accounts.Credential{Name: name, Panel: "panel1.serv00.com", Username: name, Password: "pw"}
	}
	return out
}

func opener(s browser.Session, calls *int) batch.Opener {
	return func(ctx context.Context) (browser.Session, error) {
		*calls++
		return s, nil
	}
}

func success() login.Outcome { return login.Outcome{Classification: login.Success, TriedURLs: 1} }

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := batch.New(noDelay, zaptest.NewLogger(t), nil, new(mocks.MockAttempter), new(mocks.MockReporter))
	assert.Error(t, err)
}

func TestRunner_ProcessesAllAccounts(t *testing.T) {
	defer goleak.VerifyNone(t)

	session := new(mocks.MockSession)
	session.On("Close", mock.Anything).Return(nil).Once()

	all := creds(3)
	attempter := new(mocks.MockAttempter)
	attempter.On("Run", mock.Anything, session, all[0]).Return(success(), nil).Once()
	attempter.On("Run", mock.Anything, session, all[1]).Return(login.Outcome{Classification: login.Failure, Kind: login.KindRejected}, nil).Once()
	attempter.On("Run", mock.Anything, session, all[2]).Return(success(), nil).Once()

	var reported report.Run
	reporter := new(mocks.MockReporter)
	reporter.On("Report", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		reported = args.Get(1).(report.Run)
	}).Return(nil).Once()

	recorder := new(mocks.MockRecorder)
	recorder.On("Record", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("db down")).Times(3)

	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	opens := 0
	r, err := batch.New(noDelay, zaptest.NewLogger(t), opener(session, &opens), attempter, reporter,
		batch.WithRecorder(recorder), batch.WithClock(func() time.Time { return fixed }))
	require.NoError(t, err)

	run, err := r.Run(context.Background(), all)
	require.NoError(t, err, "store failures are not fatal")

	assert.Equal(t, 1, opens, "one session for the whole batch")
	require.Len(t, run.Results, 3)
	assert.Equal(t, "user2", run.Results[1].Account)
	assert.Equal(t, fixed, run.Results[0].Timestamp)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, run.ID, reported.ID)
	assert.Len(t, reported.Results, 3)
	assert.NoError(t, reported.Err)

	summary, err := report.Aggregate(run.Results)
	require.NoError(t, err)
	assert.Equal(t, 66.7, summary.SuccessRatePercent)

	session.AssertExpectations(t)
	attempter.AssertExpectations(t)
	reporter.AssertExpectations(t)
	recorder.AssertExpectations(t)
}

func TestRunner_SessionFatalKeepsPartialResults(t *testing.T) {
	defer goleak.VerifyNone(t)

	session := new(mocks.MockSession)
	session.On("Close", mock.Anything).Return(nil).Once()

	all := creds(5)
	fatal := fmt.Errorf("%w: target crashed", browser.ErrSessionFatal)
	attempter := new(mocks.MockAttempter)
	attempter.On("Run", mock.Anything, session, all[0]).Return(success(), nil).Once()
	attempter.On("Run", mock.Anything, session, all[1]).Return(success(), nil).Once()
	attempter.On("Run", mock.Anything, session, all[2]).Return(login.Outcome{Kind: login.KindSessionFatal}, fatal).Once()

	reporter := new(mocks.MockReporter)
	reporter.On("Report", mock.Anything, mock.MatchedBy(func(run report.Run) bool {
		return len(run.Results) == 2 && errors.Is(run.Err, browser.ErrSessionFatal)
	})).Return(nil).Once()

	opens := 0
	r, err := batch.New(noDelay, zaptest.NewLogger(t), opener(session, &opens), attempter, reporter)
	require.NoError(t, err)

	run, err := r.Run(context.Background(), all)
	require.ErrorIs(t, err, browser.ErrSessionFatal)
	assert.Contains(t, err.Error(), "user3")
	assert.Len(t, run.Results, 2)

	attempter.AssertNumberOfCalls(t, "Run", 3)
	session.AssertExpectations(t)
	reporter.AssertExpectations(t)
}

func TestRunner_OpenFailureStillReports(t *testing.T) {
	defer goleak.VerifyNone(t)

	openErr := errors.New("chrome not found")
	reporter := new(mocks.MockReporter)
	reporter.On("Report", mock.Anything, mock.MatchedBy(func(run report.Run) bool {
		return len(run.Results) == 0 && errors.Is(run.Err, openErr)
	})).Return(report.ErrEmptyBatch).Once()

	r, err := batch.New(noDelay, zaptest.NewLogger(t),
		func(context.Context) (browser.Session, error) { return nil, openErr },
		new(mocks.MockAttempter), reporter)
	require.NoError(t, err)

	_, err = r.Run(context.Background(), creds(2))
	assert.ErrorIs(t, err, openErr, "the cause wins over the reporting error")
	reporter.AssertExpectations(t)
}

func TestRunner_EmptyBatch(t *testing.T) {
	reporter := new(mocks.MockReporter)
	reporter.On("Report", mock.Anything, mock.Anything).Return(report.ErrEmptyBatch).Once()

	opens := 0
	r, err := batch.New(noDelay, zaptest.NewLogger(t), opener(new(mocks.MockSession), &opens), new(mocks.MockAttempter), reporter)
	require.NoError(t, err)

	_, err = r.Run(context.Background(), nil)
	assert.ErrorIs(t, err, report.ErrEmptyBatch)
	assert.Zero(t, opens, "no browser is started for an empty batch")
}

func TestRunner_CancellationDuringPacing(t *testing.T) {
	defer goleak.VerifyNone(t)

	session := new(mocks.MockSession)
	session.On("Close", mock.Anything).Return(nil).Once()

	all := creds(3)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	attempter := new(mocks.MockAttempter)
	attempter.On("Run", mock.Anything, session, all[0]).Run(func(mock.Arguments) { cancel() }).Return(success(), nil).Once()

	reporter := new(mocks.MockReporter)
	reporter.On("Report", mock.Anything, mock.MatchedBy(func(run report.Run) bool {
		return len(run.Results) == 1 && errors.Is(run.Err, context.Canceled)
	})).Return(nil).Once()

	opens := 0
	slow := config.BatchConfig{DelayMin: time.Hour, DelayMax: time.Hour}
	r, err := batch.New(slow, zaptest.NewLogger(t), opener(session, &opens), attempter, reporter)
	require.NoError(t, err)

	start := time.Now()
	_, err = r.Run(ctx, all)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Minute, "pacing must honor cancellation")

	attempter.AssertNumberOfCalls(t, "Run", 1)
	session.AssertExpectations(t)
}
