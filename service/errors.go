package service

import (
	"errors"
	"fmt"
)

// ErrTaskNotFound 按 id 找不到任务
var ErrTaskNotFound = errors.New("task not found")

// CollaboratorError 下游生成服务返回失败状态、响应体不合法或超时。
// 只有图生视频阶段会对它做本地兜底，其余阶段一律判定任务失败。
type CollaboratorError struct {
	Service string // "storyboard" / "image" / "img2vid" / "tts"
	Err     error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s service: %v", e.Service, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

// ContractViolation 下游响应违反结构性约定（空分镜、音频数量不匹配、
// 某个场景缺少产物）。对任务总是致命，不自动重试。
type ContractViolation struct {
	Reason string
}

func (e *ContractViolation) Error() string { return e.Reason }

// AssemblyError 本地媒体工具退出码非零；保留 stderr 便于排查
type AssemblyError struct {
	Step   string
	Stderr string
	Err    error
}

func (e *AssemblyError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s failed: %s", e.Step, e.Stderr)
	}
	return fmt.Sprintf("%s failed: %v", e.Step, e.Err)
}

func (e *AssemblyError) Unwrap() error { return e.Err }
