package scheduler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScheduler(t *testing.T) *Scheduler {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Ho_Chi_Minh")
	require.NoError(t, err)
	return New(loc, zerolog.Nop())
}

func TestRegister_ValidSpec(t *testing.T) {
	s := newScheduler(t)

	err := s.Register("45 16 * * 1-5", JobFunc{
		JobName: "noop",
		Fn:      func(context.Context) error { return nil },
	})
	require.NoError(t, err)
	assert.Len(t, s.Entries(), 1)
}

func TestRegister_InvalidSpec(t *testing.T) {
	s := newScheduler(t)

	err := s.Register("not a cron spec", JobFunc{
		JobName: "noop",
		Fn:      func(context.Context) error { return nil },
	})
	assert.ErrorContains(t, err, "noop")
}

func TestRunJob_RecoversPanicAndSwallowsErrors(t *testing.T) {
	s := newScheduler(t)

	assert.NotPanics(t, func() {
		s.runJob(JobFunc{JobName: "panicky", Fn: func(context.Context) error {
			panic("boom")
		}})
	})

	s.runJob(JobFunc{JobName: "failing", Fn: func(context.Context) error {
		return fmt.Errorf("transient")
	}})
}

func TestStartAndStop(t *testing.T) {
	s := newScheduler(t)

	require.NoError(t, s.Register("@every 1h", JobFunc{
		JobName: "noop",
		Fn:      func(context.Context) error { return nil },
	}))

	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}
