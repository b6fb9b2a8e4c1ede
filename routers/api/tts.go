package api

import (
	"net/http"
	"time"

	"StoryToVideo-gateway/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// GenerateProjectTTS 项目旁白（TTS）生成任务
func GenerateProjectTTS(c *gin.Context) {
	projectID := c.Param("project_id")
	project, err := models.GetProjectByID(models.GormDB, projectID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
		return
	}

	var req struct {
		Text    string  `json:"text" form:"text"`
		Speaker string  `json:"speaker" form:"speaker"`
		Speed   float64 `json:"speed" form:"speed"`
	}
	_ = c.ShouldBind(&req)

	params := models.DefaultRenderParams()
	params.Story = project.StoryText
	params.PromptText = req.Text
	params.Speaker = req.Speaker
	if req.Speed > 0 {
		params.Speed = req.Speed
	}

	task := models.Task{
		ID:        uuid.NewString(),
		ProjectId: projectID,
		Type:      models.TaskTypeAudio,
		Status:    models.TaskStatusPending,
		Progress:  0,
		Message:   "项目音频 (TTS) 生成任务已创建",
		Parameters: models.TaskParameters{
			TTS: &models.TTSParams{
				Voice:      req.Speaker,
				SampleRate: 24000,
				Format:     "wav",
			},
			Render: &params,
		},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := submitTask(&task); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "创建 TTS 任务失败: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"task_id":    task.ID,
		"message":    "音频生成任务已创建",
		"project_id": projectID,
	})
}
