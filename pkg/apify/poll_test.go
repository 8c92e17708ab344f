package apify

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	runs  []*Run
	calls atomic.Int32
	err   error
}

func (f *fakeClient) StartRun(context.Context, string, any) (*Run, error) {
	return nil, nil
}

func (f *fakeClient) GetRun(context.Context, string) (*Run, error) {
	n := int(f.calls.Add(1)) - 1
	if f.err != nil {
		return nil, f.err
	}
	if n >= len(f.runs) {
		n = len(f.runs) - 1
	}
	return f.runs[n], nil
}

func (f *fakeClient) GetDatasetItems(context.Context, string, any) error {
	return nil
}

func TestPollRun_Succeeds(t *testing.T) {
	c := &fakeClient{runs: []*Run{
		{ID: "run-1", Status: "RUNNING"},
		{ID: "run-1", Status: "RUNNING"},
		{ID: "run-1", Status: StatusSucceeded, DefaultDatasetID: "ds-1"},
	}}

	run, err := PollRun(context.Background(), c, "run-1",
		WithPollInterval(time.Millisecond), WithPollCap(2*time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, run.Status)
	assert.Equal(t, int32(3), c.calls.Load())
}

func TestPollRun_Failed(t *testing.T) {
	c := &fakeClient{runs: []*Run{{ID: "run-1", Status: StatusFailed}}}

	_, err := PollRun(context.Background(), c, "run-1", WithPollInterval(time.Millisecond))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FAILED")
}

func TestPollRun_Timeout(t *testing.T) {
	c := &fakeClient{runs: []*Run{{ID: "run-1", Status: "RUNNING"}}}

	_, err := PollRun(context.Background(), c, "run-1",
		WithPollInterval(5*time.Millisecond), WithPollTimeout(20*time.Millisecond))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPollRun_ClientError(t *testing.T) {
	c := &fakeClient{err: assert.AnError}
	_, err := PollRun(context.Background(), c, "run-1", WithPollInterval(time.Millisecond))
	assert.Error(t, err)
}
