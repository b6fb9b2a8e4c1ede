package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"StoryToVideo-gateway/config"
	"StoryToVideo-gateway/models"
)

// Scene 分镜描述，scene_id 是图片/视频/配音各阶段之间的关联键
type Scene struct {
	SceneID   string `json:"scene_id"`
	Title     string `json:"title"`
	Prompt    string `json:"prompt"`
	Narration string `json:"narration"`
	BGM       string `json:"bgm,omitempty"`
}

type ImageArtifact struct {
	Path string `json:"path"`
	Seed int64  `json:"seed"`
}

type NarrationLine struct {
	SceneID string `json:"scene_id"`
	Text    string `json:"text"`
}

type AudioArtifact struct {
	SceneID    string `json:"scene_id"`
	Audio      string `json:"audio"`
	SampleRate int    `json:"sample_rate"`
}

// Clients 四个下游生成服务的 HTTP 客户端。
// 所有调用都带上限超时；img2vid 的上限明显更短，超时即视为失败，
// 由编排器决定是否兜底。
type Clients struct {
	cfg        *config.Config
	httpClient *http.Client
}

func NewClients(cfg *config.Config) *Clients {
	return &Clients{
		cfg:        cfg,
		httpClient: &http.Client{},
	}
}

// Storyboard 故事文本 -> 有序分镜列表
func (c *Clients) Storyboard(ctx context.Context, story, style string, scenes int) ([]Scene, error) {
	payload := map[string]interface{}{"story": story, "style": style, "scenes": scenes}
	var resp struct {
		Storyboard []Scene `json:"storyboard"`
		// 历史版本的字段名
		Shots []Scene `json:"shots"`
	}
	if err := c.postJSON(ctx, "storyboard", c.cfg.Services.StoryboardURL, c.cfg.ServiceTimeout(), payload, &resp); err != nil {
		return nil, err
	}
	if len(resp.Storyboard) > 0 {
		return resp.Storyboard, nil
	}
	return resp.Shots, nil
}

// GenerateImage 提示词 -> 关键帧图片
func (c *Clients) GenerateImage(ctx context.Context, prompt, sceneID string, p models.RenderParams) ([]ImageArtifact, error) {
	payload := map[string]interface{}{
		"prompt":   prompt,
		"scene_id": sceneID,
		"style": map[string]interface{}{
			"width":               p.Width,
			"height":              p.Height,
			"num_inference_steps": p.ImgSteps,
			"guidance_scale":      p.CfgScale,
		},
	}
	var resp struct {
		Images []ImageArtifact `json:"images"`
	}
	if err := c.postJSON(ctx, "image", c.cfg.Services.ImageURL, c.cfg.ServiceTimeout(), payload, &resp); err != nil {
		return nil, err
	}
	return resp.Images, nil
}

// ImageToVideo 单帧图片 -> 视频片段。超时上限比其它阶段短，
// 失败（含缺少产物）一律以 CollaboratorError 返回，编排器据此兜底。
func (c *Clients) ImageToVideo(ctx context.Context, framePath, sceneID string, fps, numFrames int) (string, error) {
	payload := map[string]interface{}{
		"frame":      framePath,
		"scene_id":   sceneID,
		"fps":        fps,
		"num_frames": numFrames,
	}
	var resp struct {
		Video string `json:"video"`
	}
	if err := c.postJSON(ctx, "img2vid", c.cfg.Services.Img2VidURL, c.cfg.Img2VidTimeout(), payload, &resp); err != nil {
		return "", err
	}
	if resp.Video == "" {
		return "", &CollaboratorError{Service: "img2vid", Err: fmt.Errorf("no video for scene %s", sceneID)}
	}
	return resp.Video, nil
}

// Narration 批量旁白合成，响应逐行以 scene_id 对齐
func (c *Clients) Narration(ctx context.Context, lines []NarrationLine, speaker string, speed float64) ([]AudioArtifact, error) {
	payload := map[string]interface{}{"lines": lines, "speed": speed}
	if speaker != "" {
		payload["speaker"] = speaker
	}
	var resp struct {
		Audios []AudioArtifact `json:"audios"`
	}
	if err := c.postJSON(ctx, "tts", c.cfg.Services.TTSURL, c.cfg.ServiceTimeout(), payload, &resp); err != nil {
		return nil, err
	}
	return resp.Audios, nil
}

func (c *Clients) postJSON(ctx context.Context, service, url string, timeout time.Duration, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &CollaboratorError{Service: service, Err: fmt.Errorf("marshal request: %w", err)}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return &CollaboratorError{Service: service, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &CollaboratorError{Service: service, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &CollaboratorError{Service: service, Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(b))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &CollaboratorError{Service: service, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
