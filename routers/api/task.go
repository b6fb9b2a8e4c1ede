package api

import (
	"net/http"
	"time"

	"StoryToVideo-gateway/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// TaskProgressWebSocket 任务进度推送。订阅挂在 ProgressHub 上：
// 建连后立刻补发当前快照，之后按产生顺序推送状态变更；空闲时收到
// hub 的 ping。服务端不会在任务完成时主动断开，终态快照也能被观察到。
func TaskProgressWebSocket(c *gin.Context) {
	taskID := c.Param("task_id")
	if _, err := taskStore.Get(taskID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "WebSocket升级失败"})
		return
	}
	defer conn.Close()

	sub := taskStore.Subscribe(taskID)
	defer taskStore.Unsubscribe(sub)

	// 读协程只用来感知客户端断开
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			if ev.Kind == service.EventPing {
				if err := conn.WriteJSON(gin.H{"event": "ping"}); err != nil {
					return
				}
				continue
			}
			if err := conn.WriteJSON(ev.Task); err != nil {
				return
			}
		}
	}
}

// GetTaskStatus 查询任务状态：GET /v1/api/tasks/:task_id
func GetTaskStatus(c *gin.Context) {
	taskID := c.Param("task_id")
	t, err := taskStore.Get(taskID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": t})
}

// GetJobStatus 兼容旧客户端：GET /v1/api/jobs/:job_id
func GetJobStatus(c *gin.Context) {
	jobID := c.Param("job_id")
	t, err := taskStore.Get(jobID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	c.JSON(http.StatusOK, t)
}

// StopJob 取消任务：DELETE /v1/api/jobs/:job_id。
// 已到终态的任务不会被改写（终态保护），返回 success=false。
func StopJob(c *gin.Context) {
	jobID := c.Param("job_id")
	if _, err := taskStore.Get(jobID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	now := time.Now().Format(time.RFC3339)
	if err := service.CancelTask(taskStore, jobID); err != nil {
		c.JSON(http.StatusOK, gin.H{"success": false, "deleteAT": now, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "deleteAT": now, "error": ""})
}
