package queue

import (
	"encoding/json"

	"github.com/inkstone/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskSessionCleanup 会话清理任务
	TaskSessionCleanup = constants.TaskSessionCleanup
	// TaskNoticeFanout 公告通知扩散任务
	TaskNoticeFanout = constants.TaskNoticeFanout
)

// SessionCleanupPayload 会话清理任务载荷
type SessionCleanupPayload struct {
	Type string `json:"type"`
}

// NoticeFanoutPayload 公告通知扩散任务载荷
type NoticeFanoutPayload struct {
	PostID uint `json:"post_id"`
}

// NewSessionCleanupTask 创建会话清理任务
func NewSessionCleanupTask(payload SessionCleanupPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSessionCleanup, body), nil
}

// NewNoticeFanoutTask 创建公告通知扩散任务
func NewNoticeFanoutTask(payload NoticeFanoutPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNoticeFanout, body), nil
}
