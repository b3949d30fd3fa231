package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/trezcool/darasa/core"
)

func newScheduler(t *testing.T) (*Scheduler, *time.Location) {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Kuala_Lumpur")
	if err != nil {
		t.Fatal(err)
	}
	return New(loc, core.NopLogger{}), loc
}

func TestAddDaily_next(t *testing.T) {
	s, loc := newScheduler(t)
	s.AddDaily("job", 2, nil)
	next := s.jobs[0].next

	tests := []struct {
		name  string
		after time.Time
		want  time.Time
	}{
		{
			name:  "before the hour",
			after: time.Date(2026, time.January, 25, 1, 30, 0, 0, loc),
			want:  time.Date(2026, time.January, 25, 2, 0, 0, 0, loc),
		},
		{
			name:  "on the hour rolls to tomorrow",
			after: time.Date(2026, time.January, 25, 2, 0, 0, 0, loc),
			want:  time.Date(2026, time.January, 26, 2, 0, 0, 0, loc),
		},
		{
			name:  "after the hour rolls to tomorrow",
			after: time.Date(2026, time.January, 25, 23, 0, 0, 0, loc),
			want:  time.Date(2026, time.January, 26, 2, 0, 0, 0, loc),
		},
		{
			name:  "month boundary",
			after: time.Date(2026, time.January, 31, 3, 0, 0, 0, loc),
			want:  time.Date(2026, time.February, 1, 2, 0, 0, 0, loc),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := next(tt.after); !got.Equal(tt.want) {
				t.Errorf("next(%v) = %v, want %v", tt.after, got, tt.want)
			}
		})
	}
}

func TestAddMonthly_next(t *testing.T) {
	s, loc := newScheduler(t)
	s.AddMonthly("job", 25, 1, nil)
	next := s.jobs[0].next

	tests := []struct {
		name  string
		after time.Time
		want  time.Time
	}{
		{
			name:  "before the day",
			after: time.Date(2026, time.January, 10, 12, 0, 0, 0, loc),
			want:  time.Date(2026, time.January, 25, 1, 0, 0, 0, loc),
		},
		{
			name:  "on the trigger rolls to next month",
			after: time.Date(2026, time.January, 25, 1, 0, 0, 0, loc),
			want:  time.Date(2026, time.February, 25, 1, 0, 0, 0, loc),
		},
		{
			name:  "after the day rolls to next month",
			after: time.Date(2026, time.January, 28, 0, 0, 0, 0, loc),
			want:  time.Date(2026, time.February, 25, 1, 0, 0, 0, loc),
		},
		{
			name:  "year rollover",
			after: time.Date(2026, time.December, 26, 0, 0, 0, 0, loc),
			want:  time.Date(2027, time.January, 25, 1, 0, 0, 0, loc),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := next(tt.after); !got.Equal(tt.want) {
				t.Errorf("next(%v) = %v, want %v", tt.after, got, tt.want)
			}
		})
	}
}

func TestAddMonthly_clampsToLastDay(t *testing.T) {
	s, loc := newScheduler(t)
	s.AddMonthly("job", 31, 1, nil)
	next := s.jobs[0].next

	// February has no day 31; the trigger clamps to the 28th
	after := time.Date(2026, time.February, 1, 0, 0, 0, 0, loc)
	want := time.Date(2026, time.February, 28, 1, 0, 0, 0, loc)
	if got := next(after); !got.Equal(want) {
		t.Errorf("next(%v) = %v, want %v", after, got, want)
	}

	// leap year clamps to the 29th
	after = time.Date(2028, time.February, 1, 0, 0, 0, 0, loc)
	want = time.Date(2028, time.February, 29, 1, 0, 0, 0, loc)
	if got := next(after); !got.Equal(want) {
		t.Errorf("next(%v) = %v, want %v", after, got, want)
	}
}

func TestStart_stopsOnContextCancel(t *testing.T) {
	s, _ := newScheduler(t)
	s.AddDaily("job", 0, func(ctx context.Context) error { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not return after context cancellation")
	}
}

func TestRunLoop_runsDueJob(t *testing.T) {
	s, loc := newScheduler(t)

	// freeze time just before the trigger so the timer fires immediately
	now := time.Date(2026, time.January, 25, 1, 59, 59, int(999*time.Millisecond), loc)
	s.nowFunc = func() time.Time { return now }

	var once sync.Once
	ran := make(chan struct{})
	s.AddDaily("job", 2, func(ctx context.Context) error {
		once.Do(func() { close(ran) })
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Start(ctx)

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
	}
}
