package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"StoryToVideo-gateway/config"
	"StoryToVideo-gateway/models"
	"StoryToVideo-gateway/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupAPI 组一个只挂任务相关路由的测试引擎。下游服务地址指向
// 不可达端口：提交立即成功，后台执行很快失败，便于观察终态。
func setupAPI(t *testing.T) (*gin.Engine, *service.TaskStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Services.StoryboardURL = "http://127.0.0.1:1/storyboard"
	cfg.Services.ImageURL = "http://127.0.0.1:1/generate"
	cfg.Services.Img2VidURL = "http://127.0.0.1:1/img2vid"
	cfg.Services.TTSURL = "http://127.0.0.1:1/narration"
	config.AppConfig = cfg

	hub := service.NewProgressHub(time.Hour)
	store := service.NewTaskStore(hub)
	orch := service.NewOrchestrator(store, service.NewClients(cfg), service.NewMediaAssembler(cfg))
	Init(store, orch)

	r := gin.New()
	r.GET("/health", Health)
	r.POST("/render", Render)
	r.POST("/v1/api/generate", Generate)
	r.GET("/v1/api/tasks/:task_id", GetTaskStatus)
	r.GET("/v1/api/jobs/:job_id", GetJobStatus)
	r.DELETE("/v1/api/jobs/:job_id", StopJob)
	r.GET("/tasks/:task_id/ws", TaskProgressWebSocket)
	return r, store
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	out := map[string]interface{}{}
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w, out
}

func TestRenderRequiresStory(t *testing.T) {
	r, _ := setupAPI(t)
	w, _ := doJSON(t, r, http.MethodPost, "/render", map[string]interface{}{"scenes": 2})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRenderAcceptsAndRegistersTask(t *testing.T) {
	r, store := setupAPI(t)

	w, resp := doJSON(t, r, http.MethodPost, "/render", map[string]interface{}{
		"story":  "a story about the sea",
		"scenes": 2,
	})
	require.Equal(t, http.StatusOK, w.Code)
	jobID, _ := resp["job_id"].(string)
	require.NotEmpty(t, jobID)
	assert.Equal(t, "accepted", resp["message"])

	task, err := store.Get(jobID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskTypeVideo, task.Type)
	require.NotNil(t, task.Parameters.Render)
	assert.Equal(t, 2, task.Parameters.Render.Scenes)
	assert.Equal(t, 768, task.Parameters.Render.Width, "unspecified fields keep defaults")

	// 下游不可达，后台执行应很快到 failed 终态
	assert.Eventually(t, func() bool {
		task, err := store.Get(jobID)
		return err == nil && task.Status == models.TaskStatusFailed
	}, 5*time.Second, 20*time.Millisecond)
}

func TestGenerateCompatNormalization(t *testing.T) {
	r, store := setupAPI(t)

	w, resp := doJSON(t, r, http.MethodPost, "/v1/api/generate", map[string]interface{}{
		"type": models.TaskTypeShot,
		"parameters": map[string]interface{}{
			"shot_defaults": map[string]interface{}{
				"shot_count": 2,
				"storyText":  "an old harbor",
			},
			"shot": map[string]interface{}{
				"prompt":       "a red lighthouse",
				"image_width":  "640",
				"image_height": "360",
			},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)
	jobID, _ := resp["job_id"].(string)
	require.NotEmpty(t, jobID)

	task, err := store.Get(jobID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskTypeShot, task.Type)
	p := task.Parameters.Render
	require.NotNil(t, p)
	assert.Equal(t, "an old harbor", p.Story)
	assert.Equal(t, 2, p.Scenes)
	assert.Equal(t, 640, p.Width)
	assert.Equal(t, 360, p.Height)
	assert.Equal(t, "a red lighthouse", p.PromptText)
}

func TestGetTaskStatus(t *testing.T) {
	r, store := setupAPI(t)
	require.NoError(t, store.Create(&models.Task{
		ID:     "t1",
		Type:   models.TaskTypeVideo,
		Status: models.TaskStatusProcessing,
	}))

	w, resp := doJSON(t, r, http.MethodGet, "/v1/api/tasks/t1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	task, _ := resp["task"].(map[string]interface{})
	require.NotNil(t, task)
	assert.Equal(t, "t1", task["id"])
	assert.Equal(t, models.TaskStatusProcessing, task["status"])

	w, _ = doJSON(t, r, http.MethodGet, "/v1/api/tasks/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStopJobCancelsPendingTask(t *testing.T) {
	r, store := setupAPI(t)
	require.NoError(t, store.Create(&models.Task{
		ID:     "t1",
		Type:   models.TaskTypeVideo,
		Status: models.TaskStatusPending,
	}))

	w, resp := doJSON(t, r, http.MethodDelete, "/v1/api/jobs/t1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["success"])

	task, err := store.Get("t1")
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCancelled, task.Status)
	assert.NotNil(t, task.FinishedAt)
}

func TestStopJobDoesNotOverwriteTerminal(t *testing.T) {
	r, store := setupAPI(t)
	require.NoError(t, store.Create(&models.Task{
		ID:     "t1",
		Type:   models.TaskTypeVideo,
		Status: models.TaskStatusPending,
	}))
	now := time.Now()
	st := models.TaskStatusFinished
	pr := 100
	store.Mutate("t1", models.TaskUpdate{Status: &st, Progress: &pr, FinishedAt: &now})

	w, resp := doJSON(t, r, http.MethodDelete, "/v1/api/jobs/t1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, resp["success"])

	task, _ := store.Get("t1")
	assert.Equal(t, models.TaskStatusFinished, task.Status)

	w, _ = doJSON(t, r, http.MethodDelete, "/v1/api/jobs/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTaskProgressWebSocket(t *testing.T) {
	r, store := setupAPI(t)
	require.NoError(t, store.Create(&models.Task{
		ID:     "t1",
		Type:   models.TaskTypeVideo,
		Status: models.TaskStatusPending,
	}))

	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/tasks/t1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// 建连即补发当前快照
	var snap models.Task
	require.NoError(t, conn.ReadJSON(&snap))
	assert.Equal(t, "t1", snap.ID)
	assert.Equal(t, models.TaskStatusPending, snap.Status)

	st := models.TaskStatusProcessing
	pr := 42
	store.Mutate("t1", models.TaskUpdate{Status: &st, Progress: &pr})

	require.NoError(t, conn.ReadJSON(&snap))
	assert.Equal(t, models.TaskStatusProcessing, snap.Status)
	assert.Equal(t, 42, snap.Progress)
}

func TestHealthReportsCollaborators(t *testing.T) {
	r, _ := setupAPI(t)
	w, resp := doJSON(t, r, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", resp["status"])
	assert.NotEmpty(t, resp["llm"])
}
