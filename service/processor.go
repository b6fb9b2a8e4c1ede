package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"StoryToVideo-gateway/config"
	"StoryToVideo-gateway/models"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// 运行中任务的取消注册表（taskID -> cancelFunc）。
// 外部取消请求先把记录标成 cancelled，再取消编排协程的 context；
// 编排器之后的迟到写入会被 store 的终态保护整体作废。
var runCancelRegistry = struct {
	sync.Mutex
	m map[string]context.CancelFunc
}{
	m: make(map[string]context.CancelFunc),
}

func registerRunCancel(taskID string, cancel context.CancelFunc) {
	runCancelRegistry.Lock()
	defer runCancelRegistry.Unlock()
	runCancelRegistry.m[taskID] = cancel
}

func unregisterRunCancel(taskID string) {
	runCancelRegistry.Lock()
	defer runCancelRegistry.Unlock()
	delete(runCancelRegistry.m, taskID)
}

// CancelRunningTask 取消正在执行的任务编排，返回是否实际找到并取消
func CancelRunningTask(taskID string) bool {
	runCancelRegistry.Lock()
	defer runCancelRegistry.Unlock()
	if cancel, ok := runCancelRegistry.m[taskID]; ok {
		cancel()
		delete(runCancelRegistry.m, taskID)
		return true
	}
	return false
}

// RunDetached 在后台协程中执行任务（队列不可用时的直接派发路径）。
// 提交方立刻返回，进度通过轮询或订阅观察。
func RunDetached(orch *Orchestrator, taskID string) {
	ctx, cancel := context.WithCancel(context.Background())
	registerRunCancel(taskID, cancel)
	go func() {
		defer unregisterRunCancel(taskID)
		defer cancel()
		orch.Run(ctx, taskID)
	}()
}

// Processor 消费队列里的任务 id，调用编排器执行
type Processor struct {
	Store        *TaskStore
	Orchestrator *Orchestrator
}

func NewProcessor(store *TaskStore, orch *Orchestrator) *Processor {
	return &Processor{Store: store, Orchestrator: orch}
}

// StartProcessor 启动任务消费者，concurrency 即有界工作池的大小
func (p *Processor) StartProcessor(concurrency int) {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     config.AppConfig.Redis.Addr,
			Password: config.AppConfig.Redis.Password,
		},
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeGenerateTask, p.HandleGenerateTask)

	logrus.Printf("Starting Task Processor with concurrency %d...", concurrency)
	go func() {
		if err := srv.Run(mux); err != nil {
			logrus.Fatalf("could not run server: %v", err)
		}
	}()
}

// HandleGenerateTask 从内存 store 取回任务记录并驱动编排器到终态
func (p *Processor) HandleGenerateTask(ctx context.Context, t *asynq.Task) error {
	var payload TaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}

	task, err := p.Store.Get(payload.TaskID)
	if err != nil {
		// 记录只活在本进程内存里；取不到说明已被遗忘，无需重试
		logrus.Printf("任务 %s 不在内存 store 中，丢弃", payload.TaskID)
		return nil
	}
	if models.TerminalStatus(task.Status) {
		// 执行前已被取消
		return nil
	}

	logrus.Printf("Processing Task: %s | Type: %s", task.ID, task.Type)

	runCtx, cancel := context.WithCancel(ctx)
	registerRunCancel(task.ID, cancel)
	defer unregisterRunCancel(task.ID)
	defer cancel()

	p.Orchestrator.Run(runCtx, task.ID)
	return nil
}

// CancelTask 外部取消入口：无论哪个阶段在飞，记录立即转 cancelled
// （终态除外），随后停止等待编排协程。
func CancelTask(store *TaskStore, taskID string) error {
	task, err := store.Get(taskID)
	if err != nil {
		return err
	}
	if models.TerminalStatus(task.Status) {
		return fmt.Errorf("task %s already %s", taskID, task.Status)
	}
	now := time.Now()
	store.Mutate(taskID, models.TaskUpdate{
		Status:     strPtr(models.TaskStatusCancelled),
		Message:    strPtr("stopped by user"),
		FinishedAt: &now,
	})
	if CancelRunningTask(taskID) {
		logrus.Printf("Cancelled running orchestration for task %s", taskID)
	}
	return nil
}
