package models

import (
	"time"
)

// 任务状态（在系统中统一使用这些状态）
const (
	// pending: 任务已创建，等待执行器取走执行
	TaskStatusPending = "pending"
	// blocked: 预留状态。当前网关没有任何转换会产生它（任务间依赖暂未启用）
	TaskStatusBlocked = "blocked"
	// processing: 任务正在执行中
	TaskStatusProcessing = "processing"
	TaskStatusFinished   = "finished"
	TaskStatusFailed     = "failed"
	// cancelled: 任务被用户/系统取消
	TaskStatusCancelled = "cancelled"
)

// 四种核心任务类型
const (
	TaskTypeStoryboard = "generate_storyboard" // 故事文本 -> 分镜脚本
	TaskTypeShot       = "generate_shot"       // 提示词 -> 关键帧图片
	TaskTypeAudio      = "generate_audio"      // 文本 -> 旁白语音
	TaskTypeVideo      = "generate_video"      // 完整流水线 -> 成片
)

// TerminalStatus 终态不允许再被覆盖
func TerminalStatus(status string) bool {
	return status == TaskStatusFinished || status == TaskStatusFailed || status == TaskStatusCancelled
}

// TaskResult 各阶段产物，key 如 "storyboard" / "images" / "audios" / "video"
type TaskResult map[string]interface{}

// Task 一次提交的工作单元。只存在于进程内存中（见 service.TaskStore），
// 不落库；对外可见字段即为进度推送的快照内容。
type Task struct {
	ID                string         `json:"id"`
	ProjectId         string         `json:"projectId,omitempty"`
	Type              string         `json:"type"`
	Status            string         `json:"status"`
	Progress          int            `json:"progress"`
	Message           string         `json:"message"`
	Parameters        TaskParameters `json:"parameters"`
	Result            TaskResult     `json:"result,omitempty"`
	Error             string         `json:"error,omitempty"`
	EstimatedDuration int            `json:"estimatedDuration"`
	StartedAt         *time.Time     `json:"startedAt,omitempty"`
	FinishedAt        *time.Time     `json:"finishedAt,omitempty"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
}

// Clone 返回任务的值拷贝，作为对外快照。Result 只在终态写入一次、
// 写入后不再修改，这里浅拷贝 map 头即可保证读者看不到中途状态。
func (t *Task) Clone() Task {
	cp := *t
	if t.Result != nil {
		r := make(TaskResult, len(t.Result))
		for k, v := range t.Result {
			r[k] = v
		}
		cp.Result = r
	}
	if t.StartedAt != nil {
		v := *t.StartedAt
		cp.StartedAt = &v
	}
	if t.FinishedAt != nil {
		v := *t.FinishedAt
		cp.FinishedAt = &v
	}
	return cp
}

// TaskParameters 原始请求参数。兼容历史演化出的几种提交形态
// （shot_defaults/shot/video/tts），Render 为边界层归一化后的内部参数，
// 编排器只读取 Render。
type TaskParameters struct {
	ShotDefaults *ShotDefaultsParams `json:"shot_defaults,omitempty"`
	Shot         *ShotParams         `json:"shot,omitempty"`
	Video        *VideoParams        `json:"video,omitempty"`
	TTS          *TTSParams          `json:"tts,omitempty"`
	DependsOn    []string            `json:"depends_on,omitempty"`
	Render       *RenderParams       `json:"render,omitempty"`
}

type ShotDefaultsParams struct {
	ShotCount int    `json:"shot_count"`
	Style     string `json:"style"`
	StoryText string `json:"storyText"`
}

type ShotParams struct {
	Transition  string `json:"transition"`
	ShotId      string `json:"shotId,omitempty"`
	ImageWidth  string `json:"image_width"`
	ImageHeight string `json:"image_height"`
	Prompt      string `json:"prompt"`
}

type VideoParams struct {
	Resolution string `json:"resolution"`
	FPS        int    `json:"fps"`
	Format     string `json:"format"`
	Bitrate    int    `json:"bitrate"`
}

type TTSParams struct {
	Voice      string `json:"voice"`
	Lang       string `json:"lang"`
	SampleRate int    `json:"sample_rate"`
	Format     string `json:"format"`
}

// RenderParams 归一化后的流水线参数
type RenderParams struct {
	Story       string  `json:"story"`
	Style       string  `json:"style"`
	Scenes      int     `json:"scenes"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	ImgSteps    int     `json:"img_steps"`
	CfgScale    float64 `json:"cfg_scale"`
	FPS         int     `json:"fps"`
	VideoFrames int     `json:"video_frames"`
	Speaker     string  `json:"speaker,omitempty"`
	Speed       float64 `json:"speed"`
	// PromptText 单图/单句任务使用的文本，空则退回 Story
	PromptText string `json:"prompt_text,omitempty"`
}

// DefaultRenderParams 与 /render 请求的缺省值保持一致
func DefaultRenderParams() RenderParams {
	return RenderParams{
		Scenes:      4,
		Width:       768,
		Height:      512,
		ImgSteps:    4,
		CfgScale:    1.5,
		FPS:         12,
		VideoFrames: 16,
		Speed:       1.0,
	}
}

// TaskUpdate 部分字段更新；nil 表示不改该字段
type TaskUpdate struct {
	Status     *string
	Progress   *int
	Message    *string
	Result     TaskResult
	Error      *string
	StartedAt  *time.Time
	FinishedAt *time.Time
}
