package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
	"github.com/memeet/scheduler/internal/config"
	"github.com/memeet/scheduler/pkg/logger"
)

const (
	TaskTypeMeetingInvited   = "meeting:invited"
	TaskTypeMeetingUpdated   = "meeting:updated"
	TaskTypeMeetingCancelled = "meeting:cancelled"
	TaskTypeMeetingResponded = "meeting:responded"
	TaskTypeMeetingReminder  = "meeting:reminder"
)

// MeetingTaskTypes lists every task type the worker handles.
var MeetingTaskTypes = []string{
	TaskTypeMeetingInvited,
	TaskTypeMeetingUpdated,
	TaskTypeMeetingCancelled,
	TaskTypeMeetingResponded,
	TaskTypeMeetingReminder,
}

// MeetingTask is a notification about a meeting change for a set of users.
type MeetingTask struct {
	Type         string    `json:"type"`
	MeetingID    uint      `json:"meeting_id"`
	Title        string    `json:"title"`
	StartTime    time.Time `json:"start_time"`
	Duration     int       `json:"duration"`
	ActorID      uint      `json:"actor_id"`
	RecipientIDs []uint    `json:"recipient_ids"`
	Status       string    `json:"status,omitempty"` // response given, for meeting:responded
}

// TaskQueue defines the interface for notification task processing
type TaskQueue interface {
	// Enqueue adds a task to the queue
	Enqueue(task *MeetingTask) error
	// IsAsync returns true if queue processes tasks asynchronously
	IsAsync() bool
	// Close gracefully shuts down the queue
	Close() error
}

// NewTaskQueue returns a Redis backed queue when configured and reachable,
// otherwise an in-process one.
func NewTaskQueue(cfg *config.Config) TaskQueue {
	if cfg.Redis.Enabled {
		queue, err := NewAsyncQueue(&cfg.Redis)
		if err != nil {
			logger.Warnf("[TaskQueue] Redis unavailable, falling back to sync mode: %v", err)
			return NewSyncQueue()
		}
		logger.Infof("[TaskQueue] Async queue initialized with Redis at %s", cfg.Redis.Addr)
		return queue
	}
	logger.Infof("[TaskQueue] Sync queue initialized (Redis disabled)")
	return NewSyncQueue()
}

// AsyncQueue implements TaskQueue using asynq (Redis-based)
type AsyncQueue struct {
	client *asynq.Client
}

func NewAsyncQueue(cfg *config.RedisConfig) (*AsyncQueue, error) {
	redisOpt := redisClientOpt(cfg)

	client := asynq.NewClient(redisOpt)

	// Verify the connection before committing to async mode
	inspector := asynq.NewInspector(redisOpt)
	defer inspector.Close()

	if _, err := inspector.Queues(); err != nil {
		client.Close()
		return nil, err
	}

	return &AsyncQueue{client: client}, nil
}

func redisClientOpt(cfg *config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

func (q *AsyncQueue) Enqueue(task *MeetingTask) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return err
	}

	info, err := q.client.Enqueue(asynq.NewTask(task.Type, payload),
		asynq.Queue("notifications"),
		asynq.MaxRetry(3),
	)
	if err != nil {
		return err
	}

	logger.Debug().Str("task_id", info.ID).Str("type", task.Type).Uint("meeting_id", task.MeetingID).Msg("[AsyncQueue] task enqueued")
	return nil
}

func (q *AsyncQueue) IsAsync() bool {
	return true
}

func (q *AsyncQueue) Close() error {
	return q.client.Close()
}

// SyncQueue implements TaskQueue in-process, without Redis
type SyncQueue struct {
	processor func(context.Context, *MeetingTask) error
}

func NewSyncQueue() *SyncQueue {
	return &SyncQueue{}
}

// SetProcessor sets the function that handles each task
func (q *SyncQueue) SetProcessor(processor func(context.Context, *MeetingTask) error) {
	q.processor = processor
}

// Enqueue hands the task to a goroutine so the request is not delayed
func (q *SyncQueue) Enqueue(task *MeetingTask) error {
	if q.processor == nil {
		logger.Warnf("[SyncQueue] no processor set, task %s dropped", task.Type)
		return nil
	}

	go func() {
		if err := q.processor(context.Background(), task); err != nil {
			logger.Errorf("[SyncQueue] task %s failed: %v", task.Type, err)
		}
	}()

	return nil
}

func (q *SyncQueue) IsAsync() bool {
	return false
}

func (q *SyncQueue) Close() error {
	return nil
}
