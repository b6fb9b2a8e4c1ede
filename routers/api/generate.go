package api

import (
	"net/http"
	"strconv"
	"time"

	"StoryToVideo-gateway/config"
	"StoryToVideo-gateway/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RenderRequest 原生整片提交请求
type RenderRequest struct {
	Story       string  `json:"story" binding:"required"`
	Style       string  `json:"style"`
	Scenes      int     `json:"scenes"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	ImgSteps    int     `json:"img_steps"`
	CfgScale    float64 `json:"cfg_scale"`
	FPS         int     `json:"fps"`
	VideoFrames int     `json:"video_frames"`
	Speaker     string  `json:"speaker"`
	Speed       float64 `json:"speed"`
}

// GeneratePayload 兼容历史版本的提交形态（参数拆在
// shot_defaults/shot/video/tts 下），在边界层归一化为 RenderParams，
// 形态兼容不进入核心。
type GeneratePayload struct {
	ID         string                 `json:"id"`
	ProjectId  string                 `json:"projectId"`
	Type       string                 `json:"type"`
	Message    string                 `json:"message"`
	Parameters *models.TaskParameters `json:"parameters"`
}

func Health(c *gin.Context) {
	cfg := config.AppConfig
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"llm":     cfg.Services.StoryboardURL,
		"txt2img": cfg.Services.ImageURL,
		"img2vid": cfg.Services.Img2VidURL,
		"tts":     cfg.Services.TTSURL,
	})
}

// Render 提交整片生成：POST /render
func Render(c *gin.Context) {
	var req RenderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	params := normalizeRender(&req)

	task := models.Task{
		ID:       uuid.NewString(),
		Type:     models.TaskTypeVideo,
		Status:   models.TaskStatusPending,
		Progress: 0,
		Message:  "queued",
		Parameters: models.TaskParameters{
			Render: &params,
		},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := submitTask(&task); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "创建任务失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"job_id": task.ID, "message": "accepted", "error": ""})
}

// Generate 兼容提交入口：POST /v1/api/generate
func Generate(c *gin.Context) {
	var req GeneratePayload
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	taskType := req.Type
	if taskType == "" {
		taskType = models.TaskTypeVideo
	}
	message := req.Message
	if message == "" {
		message = "queued"
	}

	parameters := models.TaskParameters{}
	if req.Parameters != nil {
		parameters = *req.Parameters
	}
	params := normalizeCompat(&parameters, req.Message)
	parameters.Render = &params

	task := models.Task{
		ID:         uuid.NewString(),
		ProjectId:  req.ProjectId,
		Type:       taskType,
		Status:     models.TaskStatusPending,
		Progress:   0,
		Message:    message,
		Parameters: parameters,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	if err := submitTask(&task); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "创建任务失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"job_id": task.ID, "message": "accepted", "error": ""})
}

// normalizeRender 填充 /render 请求的缺省值
func normalizeRender(req *RenderRequest) models.RenderParams {
	p := models.DefaultRenderParams()
	p.Story = req.Story
	p.Style = req.Style
	if req.Scenes > 0 {
		p.Scenes = req.Scenes
	}
	if req.Width > 0 {
		p.Width = req.Width
	}
	if req.Height > 0 {
		p.Height = req.Height
	}
	if req.ImgSteps > 0 {
		p.ImgSteps = req.ImgSteps
	}
	if req.CfgScale > 0 {
		p.CfgScale = req.CfgScale
	}
	if req.FPS > 0 {
		p.FPS = req.FPS
	}
	if req.VideoFrames > 0 {
		p.VideoFrames = req.VideoFrames
	}
	p.Speaker = req.Speaker
	if req.Speed > 0 {
		p.Speed = req.Speed
	}
	return p
}

// normalizeCompat 把历史提交形态映射为内部参数
func normalizeCompat(tp *models.TaskParameters, message string) models.RenderParams {
	p := models.DefaultRenderParams()

	var sd models.ShotDefaultsParams
	if tp.ShotDefaults != nil {
		sd = *tp.ShotDefaults
	}
	var shot models.ShotParams
	if tp.Shot != nil {
		shot = *tp.Shot
	}

	story := sd.StoryText
	if story == "" {
		story = shot.Prompt
	}
	if story == "" {
		story = message
	}
	if story == "" {
		story = "story"
	}
	p.Story = story
	p.Style = sd.Style
	if sd.ShotCount > 0 {
		p.Scenes = sd.ShotCount
	} else {
		p.Scenes = 1
	}
	p.PromptText = shot.Prompt
	if p.PromptText == "" {
		p.PromptText = sd.StoryText
	}

	if w, err := strconv.Atoi(shot.ImageWidth); err == nil && w > 0 {
		p.Width = w
	}
	if h, err := strconv.Atoi(shot.ImageHeight); err == nil && h > 0 {
		p.Height = h
	}
	if tp.Video != nil && tp.Video.FPS > 0 {
		p.FPS = tp.Video.FPS
	}
	if tp.TTS != nil {
		p.Speaker = tp.TTS.Voice
	}
	return p
}
