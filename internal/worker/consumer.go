package worker

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/inkstone/internal/constants"
	"github.com/inkstone/internal/logger"
	"github.com/inkstone/internal/provider"
	"github.com/inkstone/internal/queue"
	"github.com/inkstone/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskSessionCleanup, c.handleSessionCleanup)
	mux.HandleFunc(queue.TaskNoticeFanout, c.handleNoticeFanout)
}

func (c *Consumer) handleSessionCleanup(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_session_cleanup_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.SessionCleanupPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_session_cleanup_unmarshal_failed", "error", err)
		return err
	}
	cleanupType := payload.Type
	if cleanupType == "" {
		cleanupType = constants.SessionCleanupAll
	}
	if c.SessionService == nil {
		logger.Warnw("worker_session_cleanup_skip_service_nil", "type", cleanupType)
		return nil
	}
	results, err := c.SessionService.Cleanup(cleanupType, service.CleanupOptions{})
	if err != nil {
		if errors.Is(err, service.ErrInvalidCleanupType) {
			logger.Debugw("worker_session_cleanup_skip_invalid_type", "type", cleanupType)
			return nil
		}
		logger.Warnw("worker_session_cleanup_failed", "type", cleanupType, "error", err)
		return err
	}
	for _, result := range results {
		logger.Infow("worker_session_cleanup_done",
			"type", result.Type,
			"deleted", result.Deleted,
			"deactivated", result.Deactivated,
		)
	}
	return nil
}

func (c *Consumer) handleNoticeFanout(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_notice_fanout_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.NoticeFanoutPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_notice_fanout_unmarshal_failed", "error", err)
		return err
	}
	if payload.PostID == 0 {
		logger.Debugw("worker_notice_fanout_skip_invalid_payload", "post_id", payload.PostID)
		return nil
	}
	if c.NotificationService == nil {
		logger.Warnw("worker_notice_fanout_skip_service_nil", "post_id", payload.PostID)
		return nil
	}
	recipients, err := c.NotificationService.FanoutNoticePublished(ctx, payload.PostID)
	if err != nil {
		logger.Warnw("worker_notice_fanout_failed", "post_id", payload.PostID, "error", err)
		return err
	}
	logger.Infow("worker_notice_fanout_done", "post_id", payload.PostID, "recipients", recipients)
	return nil
}
