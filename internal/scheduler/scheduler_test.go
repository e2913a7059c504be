package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingJob struct {
	name    string
	runs    atomic.Int64
	err     error
	panics  bool
	lastCtx context.Context
}

func (j *recordingJob) Name() string { return j.name }

func (j *recordingJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	j.lastCtx = ctx
	if j.panics {
		panic("job exploded")
	}
	return j.err
}

func TestRegister(t *testing.T) {
	s := New(context.Background())
	job := &recordingJob{name: "refresh"}

	tests := []struct {
		name     string
		schedule string
		wantErr  bool
	}{
		{"five field spec", "*/5 * * * *", false},
		{"descriptor", "@every 6h", false},
		{"hourly descriptor", "@hourly", false},
		{"garbage", "not a schedule", true},
		{"too few fields", "* *", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := s.Register(tc.schedule, job)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRunNow(t *testing.T) {
	type ctxKey struct{}
	baseCtx := context.WithValue(context.Background(), ctxKey{}, "lifetime")
	s := New(baseCtx)

	job := &recordingJob{name: "refresh"}
	require.NoError(t, s.RunNow(job))
	assert.Equal(t, int64(1), job.runs.Load())

	// Jobs run against the scheduler's base context.
	assert.Equal(t, "lifetime", job.lastCtx.Value(ctxKey{}))

	job.err = errors.New("sources down")
	assert.Error(t, s.RunNow(job))
	assert.Equal(t, int64(2), job.runs.Load())
}

func TestRunJobSwallowsFailuresAndPanics(t *testing.T) {
	s := New(context.Background())

	failing := &recordingJob{name: "failing", err: errors.New("boom")}
	assert.NotPanics(t, func() { s.runJob(failing) })
	assert.Equal(t, int64(1), failing.runs.Load())

	panicking := &recordingJob{name: "panicking", panics: true}
	assert.NotPanics(t, func() { s.runJob(panicking) })
	assert.Equal(t, int64(1), panicking.runs.Load())
}

func TestStartStop(t *testing.T) {
	s := New(context.Background())
	require.NoError(t, s.Register("@every 1h", &recordingJob{name: "refresh"}))

	s.Start()
	s.Stop()
}
