package api

import (
	"net/http"
	"time"

	"StoryToVideo-gateway/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CreateProject 创建项目并立即触发分镜脚本生成任务
func CreateProject(c *gin.Context) {
	var req struct {
		Title     string `form:"Title" json:"title"`
		StoryText string `form:"StoryText" json:"story_text"`
		Style     string `form:"Style" json:"style"`
		ShotCount int    `form:"ShotCount" json:"shot_count"`
	}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.ShotCount <= 0 {
		req.ShotCount = 5
	}

	project := models.Project{
		ID:        uuid.NewString(),
		Title:     req.Title,
		StoryText: req.StoryText,
		Style:     req.Style,
		Status:    models.ProjectStatusCreated,
		ShotCount: req.ShotCount,
	}
	if err := models.CreateProject(models.GormDB, &project); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "创建项目失败: " + err.Error()})
		return
	}

	// 分镜脚本生成任务
	params := models.DefaultRenderParams()
	params.Story = req.StoryText
	params.Style = req.Style
	params.Scenes = req.ShotCount
	textTask := models.Task{
		ID:        uuid.NewString(),
		ProjectId: project.ID,
		Type:      models.TaskTypeStoryboard,
		Status:    models.TaskStatusPending,
		Progress:  0,
		Message:   "项目创建任务已创建,正在生成分镜脚本...",
		Parameters: models.TaskParameters{
			ShotDefaults: &models.ShotDefaultsParams{
				ShotCount: req.ShotCount,
				Style:     req.Style,
				StoryText: req.StoryText,
			},
			Render: &params,
		},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := submitTask(&textTask); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "创建文本任务失败: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"project_id":   project.ID,
		"text_task_id": textTask.ID,
	})
}

// GetProject 项目详情：项目本体 + 分镜列表 + 最近任务
func GetProject(c *gin.Context) {
	projectID := c.Param("project_id")
	project, err := models.GetProjectByID(models.GormDB, projectID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
		return
	}
	shots, err := models.GetShotsByProjectID(models.GormDB, projectID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取分镜失败: " + err.Error()})
		return
	}
	resp := gin.H{
		"project_detail": project,
		"shots":          shots,
	}
	if recent, ok := taskStore.RecentByProject(projectID); ok {
		resp["recent_task"] = recent
	}
	c.JSON(http.StatusOK, resp)
}

// UpdateProject 更新项目标题/描述
func UpdateProject(c *gin.Context) {
	projectID := c.Param("project_id")
	var req struct {
		Title       string `form:"Title" json:"title"`
		Description string `form:"Description" json:"description"`
	}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := models.GetProjectByID(models.GormDB, projectID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
		return
	}
	if err := models.UpdateProjectByID(models.GormDB, projectID, req.Title, req.Description); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "更新项目失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": projectID, "updateAT": time.Now().Format(time.RFC3339)})
}

// DeleteProject 删除项目及其分镜
func DeleteProject(c *gin.Context) {
	projectID := c.Param("project_id")
	err := models.DeleteProjectByID(models.GormDB, projectID)
	c.JSON(http.StatusOK, gin.H{
		"success":  err == nil,
		"deleteAt": time.Now().Format(time.RFC3339),
	})
}

// GenerateProjectVideo 用项目故事文本触发整片流水线
func GenerateProjectVideo(c *gin.Context) {
	projectID := c.Param("project_id")
	project, err := models.GetProjectByID(models.GormDB, projectID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
		return
	}

	var req struct {
		FPS         int `json:"fps" form:"fps"`
		VideoFrames int `json:"video_frames" form:"video_frames"`
	}
	_ = c.ShouldBind(&req)

	params := models.DefaultRenderParams()
	params.Story = project.StoryText
	params.Style = project.Style
	params.Scenes = project.ShotCount
	if req.FPS > 0 {
		params.FPS = req.FPS
	}
	if req.VideoFrames > 0 {
		params.VideoFrames = req.VideoFrames
	}

	task := models.Task{
		ID:        uuid.NewString(),
		ProjectId: projectID,
		Type:      models.TaskTypeVideo,
		Status:    models.TaskStatusPending,
		Progress:  0,
		Message:   "视频生成任务排队中",
		Parameters: models.TaskParameters{
			Video:  &models.VideoParams{FPS: params.FPS},
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
		"task_id":    task.ID,
		"message":    "视频生成任务已创建",
		"project_id": projectID,
	})
}
