package api

import (
	"StoryToVideo-gateway/models"
	"StoryToVideo-gateway/service"

	"github.com/sirupsen/logrus"
)

var (
	taskStore    *service.TaskStore
	orchestrator *service.Orchestrator
)

// Init 注入任务 store 与编排器，main 启动时调用一次
func Init(store *service.TaskStore, orch *service.Orchestrator) {
	taskStore = store
	orchestrator = orch
}

// submitTask 登记任务并派发执行，提交方立即拿到 id。
// 优先走队列（有界工作池）；队列不可用时退化为本进程协程直跑。
func submitTask(t *models.Task) error {
	if err := taskStore.Create(t); err != nil {
		return err
	}
	if service.QueueClient != nil {
		if err := service.EnqueueTask(t.ID); err == nil {
			return nil
		} else {
			logrus.Printf("任务入队失败，改为进程内执行 task=%s: %v", t.ID, err)
		}
	}
	service.RunDetached(orchestrator, t.ID)
	return nil
}
