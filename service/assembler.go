package service

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"StoryToVideo-gateway/config"

	"github.com/sirupsen/logrus"
)

// MediaAssembler 封装本地媒体工具（ffmpeg）：单段视频+音频合成、
// 按给定顺序拼接成片、以及 img2vid 失败后的静帧兜底视频。
// 中间产物写在按任务划分的临时目录下，由调用方在不再需要时清理；
// Assembler 自己绝不删除调用方提供的输入文件。
type MediaAssembler struct {
	binary   string
	tmpDir   string
	clipsDir string
	finalDir string
}

func NewMediaAssembler(cfg *config.Config) *MediaAssembler {
	return &MediaAssembler{
		binary:   cfg.Media.FFmpegPath,
		tmpDir:   cfg.Media.TmpDir,
		clipsDir: cfg.Media.ClipsDir,
		finalDir: cfg.Media.FinalDir,
	}
}

// MuxClipAudio 合成一段视频与一段旁白：视频流直拷，音频重编码为 AAC，
// 以较短的一路为准截断（-shortest）。
func (a *MediaAssembler) MuxClipAudio(ctx context.Context, taskID, sceneID, videoPath, audioPath string) (string, error) {
	dir := filepath.Join(a.tmpDir, taskID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create tmp dir: %w", err)
	}
	out := filepath.Join(dir, sceneID+"_mux.mp4")
	args := []string{
		"-y",
		"-i", videoPath,
		"-i", audioPath,
		"-c:v", "copy",
		"-c:a", "aac",
		"-shortest",
		out,
	}
	if err := a.run(ctx, fmt.Sprintf("mux %s", sceneID), args); err != nil {
		return "", err
	}
	return out, nil
}

// FallbackStillToVideo 用单张静帧本地合成定长视频片段，时长
// max(frame_count/fps, 0.5) 秒。仅在 img2vid 服务确定失败之后调用，
// 绝不与远端调用并行投机执行。
func (a *MediaAssembler) FallbackStillToVideo(ctx context.Context, taskID, framePath, sceneID string, fps, frameCount int) (string, error) {
	dir := filepath.Join(a.clipsDir, taskID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create clips dir: %w", err)
	}
	out := filepath.Join(dir, sceneID+"_fallback.mp4")

	f := fps
	if f < 1 {
		f = 1
	}
	duration := float64(frameCount) / float64(f)
	if duration < 0.5 {
		duration = 0.5
	}
	args := []string{
		"-y",
		"-loop", "1",
		"-t", fmt.Sprintf("%.2f", duration),
		"-i", framePath,
		"-vf", fmt.Sprintf("fps=%d", fps),
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		out,
	}
	if err := a.run(ctx, fmt.Sprintf("fallback video for %s", sceneID), args); err != nil {
		return "", err
	}
	return out, nil
}

// Concat 把有序片段列表拼成单个成片：写 manifest（每行一个
// file '<绝对路径>'，顺序即输入顺序），一次性调用 ffmpeg 重编码输出。
// 输入列表的顺序在输出中严格保持，这就是分镜顺序穿过乱序上游的机制。
func (a *MediaAssembler) Concat(ctx context.Context, taskID string, muxedPaths []string) (string, error) {
	if len(muxedPaths) == 0 {
		return "", fmt.Errorf("concat: empty clip list")
	}
	dir := filepath.Join(a.tmpDir, taskID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create tmp dir: %w", err)
	}
	if err := os.MkdirAll(a.finalDir, 0o755); err != nil {
		return "", fmt.Errorf("create final dir: %w", err)
	}

	var sb strings.Builder
	for _, p := range muxedPaths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return "", fmt.Errorf("resolve clip path %s: %w", p, err)
		}
		sb.WriteString(fmt.Sprintf("file '%s'\n", filepath.ToSlash(abs)))
	}
	listFile := filepath.Join(dir, fmt.Sprintf("concat_%s.txt", taskID))
	if err := os.WriteFile(listFile, []byte(sb.String()), 0o644); err != nil {
		return "", fmt.Errorf("write concat manifest: %w", err)
	}

	out := filepath.Join(a.finalDir, fmt.Sprintf("final_%s.mp4", taskID))
	args := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-profile:v", "main",
		"-c:a", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
		out,
	}
	if err := a.run(ctx, "concat videos", args); err != nil {
		return "", err
	}
	return out, nil
}

// CleanupTask 删除该任务的中间产物目录。失败的任务不调用，
// 留现场排查。
func (a *MediaAssembler) CleanupTask(taskID string) {
	if err := os.RemoveAll(filepath.Join(a.tmpDir, taskID)); err != nil {
		logrus.Printf("清理临时目录失败 task=%s: %v", taskID, err)
	}
	if err := os.RemoveAll(filepath.Join(a.clipsDir, taskID)); err != nil {
		logrus.Printf("清理片段目录失败 task=%s: %v", taskID, err)
	}
}

func (a *MediaAssembler) run(ctx context.Context, step string, args []string) error {
	cmd := exec.CommandContext(ctx, a.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	logrus.Debugf("ffmpeg %s", strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		tail := stderr.String()
		if len(tail) > 2048 {
			tail = tail[len(tail)-2048:]
		}
		return &AssemblyError{Step: step, Stderr: strings.TrimSpace(tail), Err: err}
	}
	return nil
}
