package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"StoryToVideo-gateway/models"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// 图片/视频阶段的每任务并发上限
const sceneConcurrency = 4

// Orchestrator 驱动单个任务走完它的状态机：
// pending -> processing -> {finished|failed}，cancelled 由外部强制。
// 整片流水线按 分镜(10)/图片(20)/视频(20)/旁白(10)/合成(15)/拼接(15)/收尾(10)
// 的权重推进进度。
type Orchestrator struct {
	store     *TaskStore
	clients   *Clients
	assembler *MediaAssembler
	// uploadFinal 成片上传钩子（MinIO 未配置或测试时为 nil）
	uploadFinal func(localPath, taskID string) (string, error)
	// saveShots 项目任务的分镜落库钩子（无项目上下文时为 nil）
	saveShots func(projectID string, scenes []Scene) error
	// setProjectVideo 把成片地址写回项目实体，尽力而为
	setProjectVideo func(projectID, videoPath string) error
}

func NewOrchestrator(store *TaskStore, clients *Clients, assembler *MediaAssembler) *Orchestrator {
	return &Orchestrator{store: store, clients: clients, assembler: assembler}
}

// WithUploader 注入成片上传钩子
func (o *Orchestrator) WithUploader(fn func(localPath, taskID string) (string, error)) *Orchestrator {
	o.uploadFinal = fn
	return o
}

// WithProjectHooks 注入项目实体的回写钩子
func (o *Orchestrator) WithProjectHooks(saveShots func(projectID string, scenes []Scene) error, setVideo func(projectID, videoPath string) error) *Orchestrator {
	o.saveShots = saveShots
	o.setProjectVideo = setVideo
	return o
}

// Run 执行一个任务直到终态。阶段级错误只终结当前任务，绝不影响进程；
// 任务被外部取消后，这里的迟到写入都会被 TaskStore 的终态保护吸收。
func (o *Orchestrator) Run(ctx context.Context, taskID string) {
	task, err := o.store.Get(taskID)
	if err != nil {
		logrus.Printf("任务不存在，跳过执行: %s", taskID)
		return
	}
	params := models.DefaultRenderParams()
	if task.Parameters.Render != nil {
		params = *task.Parameters.Render
	}

	now := time.Now()
	o.store.Mutate(taskID, models.TaskUpdate{
		Status:    strPtr(models.TaskStatusProcessing),
		Progress:  intPtr(1),
		Message:   strPtr("start pipeline"),
		StartedAt: &now,
	})

	switch task.Type {
	case models.TaskTypeStoryboard:
		err = o.runStoryboard(ctx, taskID, task.ProjectId, params)
	case models.TaskTypeShot:
		err = o.runShot(ctx, taskID, params)
	case models.TaskTypeAudio:
		err = o.runAudio(ctx, taskID, params)
	default:
		err = o.runVideo(ctx, taskID, task.ProjectId, params)
	}
	if err != nil {
		o.fail(taskID, err)
	}
}

// --- 单阶段任务 ---

func (o *Orchestrator) runStoryboard(ctx context.Context, taskID, projectID string, p models.RenderParams) error {
	scenes, err := o.clients.Storyboard(ctx, p.Story, p.Style, p.Scenes)
	if err != nil {
		return err
	}
	if projectID != "" && o.saveShots != nil {
		normalizeScenes(scenes)
		if err := o.saveShots(projectID, scenes); err != nil {
			return fmt.Errorf("save shots for project %s: %w", projectID, err)
		}
	}
	o.finish(taskID, models.TaskResult{"storyboard": scenes}, "storyboard done")
	return nil
}

func (o *Orchestrator) runShot(ctx context.Context, taskID string, p models.RenderParams) error {
	prompt := p.PromptText
	if prompt == "" {
		prompt = p.Story
	}
	images, err := o.clients.GenerateImage(ctx, prompt, "s1", p)
	if err != nil {
		return err
	}
	o.finish(taskID, models.TaskResult{"images": images}, "shot done")
	return nil
}

func (o *Orchestrator) runAudio(ctx context.Context, taskID string, p models.RenderParams) error {
	text := p.PromptText
	if text == "" {
		text = p.Story
	}
	audios, err := o.clients.Narration(ctx, []NarrationLine{{SceneID: "s1", Text: text}}, p.Speaker, p.Speed)
	if err != nil {
		return err
	}
	o.finish(taskID, models.TaskResult{"audios": audios}, "audio done")
	return nil
}

// --- 整片流水线 ---

func (o *Orchestrator) runVideo(ctx context.Context, taskID, projectID string, p models.RenderParams) error {
	// 1) 分镜
	scenes, err := o.clients.Storyboard(ctx, p.Story, p.Style, p.Scenes)
	if err != nil {
		return err
	}
	if len(scenes) == 0 {
		return &ContractViolation{Reason: "storyboard empty"}
	}
	normalizeScenes(scenes)
	if err := checkSceneIDs(scenes); err != nil {
		return err
	}
	total := len(scenes)
	o.progress(taskID, 10, "Storyboard ready")

	// 2) 文生图。可以按场景并发，结果按分镜位置落槽，顺序由下标保证
	frames := make([]string, total)
	var imgDone int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sceneConcurrency)
	for i, sc := range scenes {
		i, sc := i, sc
		g.Go(func() error {
			images, err := o.clients.GenerateImage(gctx, sc.Prompt, sc.SceneID, p)
			if err != nil {
				return err
			}
			if len(images) == 0 {
				return &ContractViolation{Reason: fmt.Sprintf("no image for scene %s", sc.SceneID)}
			}
			frames[i] = images[0].Path
			n := int(atomic.AddInt32(&imgDone, 1))
			o.progress(taskID, 10+20*n/total, fmt.Sprintf("Images %d/%d", n, total))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// 3) 图生视频。只有这一阶段的失败被就地吸收：确定失败后才用
	//    该场景的静帧本地兜底，流水线继续
	clips := make([]string, total)
	var vidDone int32
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(sceneConcurrency)
	for i, sc := range scenes {
		i, sc := i, sc
		g.Go(func() error {
			video, err := o.clients.ImageToVideo(gctx, frames[i], sc.SceneID, p.FPS, p.VideoFrames)
			if err != nil {
				var ce *CollaboratorError
				if !errors.As(err, &ce) {
					return err
				}
				logrus.Printf("img2vid 失败，场景 %s 改用静帧兜底: %v", sc.SceneID, err)
				video, err = o.assembler.FallbackStillToVideo(gctx, taskID, frames[i], sc.SceneID, p.FPS, p.VideoFrames)
				if err != nil {
					return err
				}
			}
			clips[i] = video
			n := int(atomic.AddInt32(&vidDone, 1))
			o.progress(taskID, 30+20*n/total, fmt.Sprintf("Videos %d/%d", n, total))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// 4) 批量旁白。返回条数必须与请求行数一致（严格 1:1 契约）
	lines := make([]NarrationLine, total)
	for i, sc := range scenes {
		text := sc.Narration
		if text == "" {
			text = sc.Prompt
		}
		lines[i] = NarrationLine{SceneID: sc.SceneID, Text: text}
	}
	audios, err := o.clients.Narration(ctx, lines, p.Speaker, p.Speed)
	if err != nil {
		return err
	}
	if len(audios) != len(lines) {
		return &ContractViolation{Reason: fmt.Sprintf("tts count mismatch: want %d, got %d", len(lines), len(audios))}
	}
	audioBySceneID := make(map[string]AudioArtifact, len(audios))
	for _, a := range audios {
		audioBySceneID[a.SceneID] = a
	}
	o.progress(taskID, 60, "TTS ready")

	// 5) 逐场景合成，严格按分镜顺序消费上游结果
	muxed := make([]string, 0, total)
	for i, sc := range scenes {
		audio, ok := audioBySceneID[sc.SceneID]
		if !ok {
			return &ContractViolation{Reason: fmt.Sprintf("missing audio for scene %s", sc.SceneID)}
		}
		out, err := o.assembler.MuxClipAudio(ctx, taskID, sc.SceneID, clips[i], audio.Audio)
		if err != nil {
			return err
		}
		muxed = append(muxed, out)
		o.progress(taskID, 60+15*(i+1)/total, fmt.Sprintf("Mux %d/%d", i+1, total))
	}

	// 6) 拼接成片，输入顺序即分镜顺序
	finalPath, err := o.assembler.Concat(ctx, taskID, muxed)
	if err != nil {
		return err
	}
	o.progress(taskID, 90, "Concat done")

	result := models.TaskResult{"video": finalPath}
	if o.uploadFinal != nil {
		if url, err := o.uploadFinal(finalPath, taskID); err != nil {
			logrus.Printf("成片上传失败（保留本地路径）task=%s: %v", taskID, err)
		} else {
			result["video_url"] = url
		}
	}
	if projectID != "" && o.setProjectVideo != nil {
		if err := o.setProjectVideo(projectID, finalPath); err != nil {
			logrus.Printf("回写项目成片地址失败 project=%s: %v", projectID, err)
		}
	}
	o.finish(taskID, result, "done")
	o.assembler.CleanupTask(taskID)
	return nil
}

// --- 状态推进 ---

func (o *Orchestrator) progress(taskID string, pct int, msg string) {
	o.store.Mutate(taskID, models.TaskUpdate{Progress: intPtr(pct), Message: strPtr(msg)})
}

func (o *Orchestrator) finish(taskID string, result models.TaskResult, msg string) {
	now := time.Now()
	o.store.Mutate(taskID, models.TaskUpdate{
		Status:     strPtr(models.TaskStatusFinished),
		Progress:   intPtr(100),
		Message:    strPtr(msg),
		Result:     result,
		FinishedAt: &now,
	})
}

// fail 记录触发错误原文；失败任务的中间产物留在临时目录里便于排查
func (o *Orchestrator) fail(taskID string, err error) {
	logrus.Printf("任务失败 task=%s: %v", taskID, err)
	now := time.Now()
	errMsg := err.Error()
	o.store.Mutate(taskID, models.TaskUpdate{
		Status:     strPtr(models.TaskStatusFailed),
		Message:    strPtr("failed: " + errMsg),
		Error:      &errMsg,
		FinishedAt: &now,
	})
}

// normalizeScenes 为缺字段的分镜补默认值（历史服务偶尔漏 scene_id）
func normalizeScenes(scenes []Scene) {
	for i := range scenes {
		if scenes[i].SceneID == "" {
			scenes[i].SceneID = fmt.Sprintf("s%d", i+1)
		}
		if scenes[i].Prompt == "" {
			scenes[i].Prompt = scenes[i].Title
		}
	}
}

// checkSceneIDs scene_id 是各阶段的关联键，必须唯一
func checkSceneIDs(scenes []Scene) error {
	seen := make(map[string]struct{}, len(scenes))
	for _, sc := range scenes {
		if _, ok := seen[sc.SceneID]; ok {
			return &ContractViolation{Reason: fmt.Sprintf("duplicate scene_id %s in storyboard", sc.SceneID)}
		}
		seen[sc.SceneID] = struct{}{}
	}
	return nil
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
