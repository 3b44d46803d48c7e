package reclaim

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"inventory_reports/internal/resources"
	"inventory_reports/platform/logger"
)

// TaskReleaseHandle is the asynq task type for a delayed release.
const TaskReleaseHandle = "resources.release"

const defaultQueue = "reclaim"

// ReleaseHandlePayload identifies the handle to release.
type ReleaseHandlePayload struct {
	HandleID string `json:"handleId"`
}

// NewReleaseHandleTask builds the task for handleID.
func NewReleaseHandleTask(payload ReleaseHandlePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReleaseHandle, data), nil
}

// ParseReleaseHandlePayload decodes a release task.
func ParseReleaseHandlePayload(task *asynq.Task) (ReleaseHandlePayload, error) {
	var payload ReleaseHandlePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ReleaseHandlePayload{}, err
	}
	return payload, nil
}

// AsynqScheduler enqueues delayed release tasks in Redis and runs an
// in-process worker that executes them.
type AsynqScheduler struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	server    *asynq.Server
	mux       *asynq.ServeMux
	releaser  Releaser
	queue     string
	log       *logger.Logger
}

// NewAsynqScheduler connects to redisURL. Call Run to start the worker.
func NewAsynqScheduler(redisURL string, releaser Releaser, log *logger.Logger) (*AsynqScheduler, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL)
	if err != nil {
		return nil, err
	}

	s := &AsynqScheduler{
		client:    asynq.NewClient(opt),
		inspector: asynq.NewInspector(opt),
		server: asynq.NewServer(opt, asynq.Config{
			Concurrency: 2,
			Queues:      map[string]int{defaultQueue: 1},
			Logger:      asynqLogger{log},
		}),
		mux:      asynq.NewServeMux(),
		releaser: releaser,
		queue:    defaultQueue,
		log:      log,
	}
	s.mux.HandleFunc(TaskReleaseHandle, s.handleRelease)
	return s, nil
}

// Schedule enqueues a release of handleID to run after the delay. The task
// id is the handle id, so scheduling the same handle twice is rejected by Redis.
func (s *AsynqScheduler) Schedule(ctx context.Context, handleID string, after time.Duration) error {
	task, err := NewReleaseHandleTask(ReleaseHandlePayload{HandleID: handleID})
	if err != nil {
		return err
	}

	_, err = s.client.EnqueueContext(ctx, task,
		asynq.ProcessIn(after),
		asynq.Queue(s.queue),
		asynq.TaskID(handleID),
		asynq.MaxRetry(3),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

// Cancel drops a pending release. Already running or finished tasks are ignored.
func (s *AsynqScheduler) Cancel(_ context.Context, handleID string) {
	if err := s.inspector.DeleteTask(s.queue, handleID); err != nil &&
		!errors.Is(err, asynq.ErrTaskNotFound) && !errors.Is(err, asynq.ErrQueueNotFound) {
		s.log.Debug("reclaim cancel failed", "handle_id", handleID, "error", err)
	}
}

// Run processes release tasks until ctx is cancelled.
func (s *AsynqScheduler) Run(ctx context.Context) error {
	if err := s.server.Start(s.mux); err != nil {
		return fmt.Errorf("reclaim worker: %w", err)
	}
	<-ctx.Done()
	s.server.Shutdown()
	return nil
}

// Close releases the Redis connections held by the client side.
func (s *AsynqScheduler) Close() error {
	return errors.Join(s.client.Close(), s.inspector.Close())
}

// ProcessTask runs one release task; exported for the worker mux and tests.
func (s *AsynqScheduler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	return s.handleRelease(ctx, task)
}

func (s *AsynqScheduler) handleRelease(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseReleaseHandlePayload(task)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if payload.HandleID == "" {
		return fmt.Errorf("empty handle id: %w", asynq.SkipRetry)
	}
	return s.releaser.ReleaseByID(ctx, payload.HandleID, resources.ReasonReclaimed)
}

func redisClientOpt(redisURL string) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		tlsConfig = opt.TLSConfig.Clone()
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}

// asynqLogger routes asynq's internal logging through our logger.
type asynqLogger struct {
	log *logger.Logger
}

func (l asynqLogger) Debug(args ...interface{}) { l.log.Debug(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...interface{})  { l.log.Info(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...interface{})  { l.log.Warn(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...interface{}) { l.log.Error(fmt.Sprint(args...)) }
func (l asynqLogger) Fatal(args ...interface{}) { l.log.Error(fmt.Sprint(args...)) }
