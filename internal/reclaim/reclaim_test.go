package reclaim

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inventory_reports/internal/resources"
	"inventory_reports/platform/logger"
)

type recordingReleaser struct {
	mu    sync.Mutex
	calls map[string]string
	done  chan string
}

func newRecordingReleaser() *recordingReleaser {
	return &recordingReleaser{calls: make(map[string]string), done: make(chan string, 8)}
}

func (r *recordingReleaser) ReleaseByID(_ context.Context, id, reason string) error {
	r.mu.Lock()
	r.calls[id] = reason
	r.mu.Unlock()
	r.done <- id
	return nil
}

func (r *recordingReleaser) reason(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[id]
}

func TestTimerScheduler_ReleasesAfterDelay(t *testing.T) {
	rel := newRecordingReleaser()
	s := NewTimerScheduler(rel, logger.Discard())
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Schedule(context.Background(), "h1", 10*time.Millisecond))
	assert.Equal(t, 1, s.Pending())

	select {
	case id := <-rel.done:
		assert.Equal(t, "h1", id)
	case <-time.After(2 * time.Second):
		t.Fatal("reclaim did not fire")
	}
	assert.Equal(t, resources.ReasonReclaimed, rel.reason("h1"))
	assert.Eventually(t, func() bool { return s.Pending() == 0 }, time.Second, 5*time.Millisecond)
}

func TestTimerScheduler_CancelPreventsRelease(t *testing.T) {
	rel := newRecordingReleaser()
	s := NewTimerScheduler(rel, logger.Discard())
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Schedule(context.Background(), "h1", 20*time.Millisecond))
	s.Cancel(context.Background(), "h1")
	assert.Equal(t, 0, s.Pending())

	select {
	case id := <-rel.done:
		t.Fatalf("unexpected release of %s", id)
	case <-time.After(60 * time.Millisecond):
	}
}

func TestTimerScheduler_CloseStopsTimers(t *testing.T) {
	rel := newRecordingReleaser()
	s := NewTimerScheduler(rel, logger.Discard())

	require.NoError(t, s.Schedule(context.Background(), "h1", 20*time.Millisecond))
	require.NoError(t, s.Close())
	require.NoError(t, s.Schedule(context.Background(), "h2", time.Millisecond))
	assert.Equal(t, 0, s.Pending())

	select {
	case id := <-rel.done:
		t.Fatalf("unexpected release of %s", id)
	case <-time.After(60 * time.Millisecond):
	}
}

func TestReleaseHandleTask_RoundTrip(t *testing.T) {
	task, err := NewReleaseHandleTask(ReleaseHandlePayload{HandleID: "abc"})
	require.NoError(t, err)
	assert.Equal(t, TaskReleaseHandle, task.Type())

	payload, err := ParseReleaseHandlePayload(task)
	require.NoError(t, err)
	assert.Equal(t, "abc", payload.HandleID)
}

func TestAsynqScheduler_HandleRelease(t *testing.T) {
	rel := newRecordingReleaser()
	s := &AsynqScheduler{releaser: rel, log: logger.Discard()}

	task, err := NewReleaseHandleTask(ReleaseHandlePayload{HandleID: "h9"})
	require.NoError(t, err)
	require.NoError(t, s.ProcessTask(context.Background(), task))
	assert.Equal(t, resources.ReasonReclaimed, rel.reason("h9"))

	err = s.ProcessTask(context.Background(), asynq.NewTask(TaskReleaseHandle, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = s.ProcessTask(context.Background(), asynq.NewTask(TaskReleaseHandle, []byte(`{}`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestNewAsynqScheduler_RequiresURL(t *testing.T) {
	_, err := NewAsynqScheduler("", newRecordingReleaser(), logger.Discard())
	require.Error(t, err)

	_, err = NewAsynqScheduler("://bad", newRecordingReleaser(), logger.Discard())
	require.Error(t, err)
}
