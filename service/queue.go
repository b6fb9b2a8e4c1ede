package service

import (
	"encoding/json"
	"fmt"
	"time"

	"StoryToVideo-gateway/config"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

const (
	TypeGenerateTask = "task:generate"
)

type TaskPayload struct {
	TaskID string `json:"task_id"`
}

var QueueClient *asynq.Client

// InitQueue 初始化入队客户端
func InitQueue() {
	QueueClient = asynq.NewClient(asynq.RedisClientOpt{
		Addr:     config.AppConfig.Redis.Addr,
		Password: config.AppConfig.Redis.Password,
	})
}

// EnqueueTask 提交即返回：任务记录已在内存 store 里，这里只投递 id，
// 由同进程的 Processor 取走执行
func EnqueueTask(taskID string) error {
	payload, err := json.Marshal(TaskPayload{TaskID: taskID})
	if err != nil {
		return fmt.Errorf("marshal payload failed: %w", err)
	}

	task := asynq.NewTask(TypeGenerateTask, payload,
		asynq.MaxRetry(0),             // 编排器内部已有唯一的显式兜底，不做整任务重试
		asynq.Timeout(30*time.Minute), // 生成链路较慢，给足上限
	)

	info, err := QueueClient.Enqueue(task)
	if err != nil {
		return fmt.Errorf("enqueue failed: %w", err)
	}

	logrus.Printf("[Queue] Task Enqueued: ID=%s, TaskID=%s", taskID, info.ID)
	return nil
}
