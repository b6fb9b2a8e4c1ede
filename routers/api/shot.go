package api

import (
	"net/http"
	"time"

	"StoryToVideo-gateway/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// GetShots 获取分镜列表
func GetShots(c *gin.Context) {
	projectID := c.Param("project_id")

	shots, err := models.GetShotsByProjectID(models.GormDB, projectID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取分镜失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"shots":       shots,
		"project_id":  projectID,
		"total_shots": len(shots),
	})
}

// UpdateShot 更新分镜并触发该分镜的图片重生成任务
func UpdateShot(c *gin.Context) {
	projectID := c.Param("project_id")
	shotID := c.Param("shot_id")

	var req struct {
		Title      string `form:"title" json:"title"`
		Prompt     string `form:"prompt" json:"prompt"`
		Transition string `form:"transition" json:"transition"`
	}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	shot, err := models.GetShotByID(models.GormDB, projectID, shotID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "分镜未找到"})
		return
	}
	if err := models.UpdateShotByID(models.GormDB, projectID, shotID, req.Title, req.Prompt, req.Transition); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "更新分镜失败: " + err.Error()})
		return
	}

	prompt := req.Prompt
	if prompt == "" {
		prompt = shot.Prompt
	}
	params := models.DefaultRenderParams()
	params.PromptText = prompt
	params.Story = prompt
	params.Width = 1024
	params.Height = 1024

	task := models.Task{
		ID:        uuid.NewString(),
		ProjectId: projectID,
		Type:      models.TaskTypeShot,
		Status:    models.TaskStatusPending,
		Progress:  0,
		Message:   "分镜已更新并创建生成任务",
		Parameters: models.TaskParameters{
			Shot: &models.ShotParams{
				ShotId:      shotID,
				Prompt:      prompt,
				ImageWidth:  "1024",
				ImageHeight: "1024",
				Transition:  req.Transition,
			},
			Render: &params,
		},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := submitTask(&task); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "创建任务失败: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"shot_id": shotID,
		"task_id": task.ID,
		"message": "分镜已更新并创建生成任务",
	})
}

// GetShotDetail 获取分镜详情
func GetShotDetail(c *gin.Context) {
	projectID := c.Param("project_id")
	shotID := c.Param("shot_id")

	shot, err := models.GetShotByID(models.GormDB, projectID, shotID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "分镜未找到"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"shot_detail": shot})
}

// DeleteShot 删除分镜
func DeleteShot(c *gin.Context) {
	projectID := c.Param("project_id")
	shotID := c.Param("shot_id")

	if err := models.DeleteShotByID(models.GormDB, projectID, shotID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "删除分镜失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":    "分镜已删除",
		"shot_id":    shotID,
		"project_id": projectID,
	})
}
