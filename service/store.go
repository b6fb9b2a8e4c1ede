package service

import (
	"fmt"
	"sync"
	"time"

	"StoryToVideo-gateway/models"
)

// TaskStore 任务记录的唯一可变容器。记录只存在于进程内存，
// 外部只能拿到值拷贝快照，永远看不到写了一半的组合状态。
// 每次 Mutate 作为副作用把最新快照推给 ProgressHub。
type TaskStore struct {
	mu    sync.RWMutex
	tasks map[string]*models.Task
	hub   *ProgressHub
}

func NewTaskStore(hub *ProgressHub) *TaskStore {
	return &TaskStore{
		tasks: make(map[string]*models.Task),
		hub:   hub,
	}
}

// Create 登记新任务，重复 id 拒绝
func (s *TaskStore) Create(t *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[t.ID]; ok {
		return fmt.Errorf("duplicate task id: %s", t.ID)
	}
	now := time.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	cp := t.Clone()
	s.tasks[t.ID] = &cp
	return nil
}

// Get 按 id 查询快照
func (s *TaskStore) Get(id string) (models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return models.Task{}, ErrTaskNotFound
	}
	return t.Clone(), nil
}

// Mutate 原子地应用一组字段更新并推送快照。约束：
//   - 未知 id 静默忽略（任务可能与自身取消并发）
//   - 终态记录不再接受任何修改（status 不允许从终态回退）
//   - processing 期间 progress 单调不减
//   - startedAt/finishedAt 只在首次给出时落下
func (s *TaskStore) Mutate(id string, upd models.TaskUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return
	}
	if models.TerminalStatus(t.Status) {
		// 终态之后编排器的迟到写入全部作废
		return
	}
	if upd.Status != nil {
		t.Status = *upd.Status
	}
	if upd.Progress != nil {
		p := *upd.Progress
		if p > 100 {
			p = 100
		}
		if p > t.Progress {
			t.Progress = p
		}
	}
	if upd.Message != nil {
		t.Message = *upd.Message
	}
	if upd.Result != nil {
		t.Result = upd.Result
	}
	if upd.Error != nil {
		t.Error = *upd.Error
	}
	if upd.StartedAt != nil && t.StartedAt == nil {
		v := *upd.StartedAt
		t.StartedAt = &v
	}
	if upd.FinishedAt != nil && t.FinishedAt == nil {
		v := *upd.FinishedAt
		t.FinishedAt = &v
	}
	t.UpdatedAt = time.Now()

	if s.hub != nil {
		s.hub.Publish(id, t.Clone())
	}
}

// RecentByProject 返回该项目最近更新的任务快照（项目详情页展示用）
func (s *TaskStore) RecentByProject(projectID string) (models.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *models.Task
	for _, t := range s.tasks {
		if t.ProjectId != projectID {
			continue
		}
		if best == nil || t.UpdatedAt.After(best.UpdatedAt) {
			best = t
		}
	}
	if best == nil {
		return models.Task{}, false
	}
	return best.Clone(), true
}

// Subscribe 打开该任务的进度订阅，当前快照（若任务存在）会先于
// 后续事件补发。快照读取与订阅注册在同一把锁下完成，
// 与并发 Mutate 之间不会丢事件也不会乱序。
func (s *TaskStore) Subscribe(id string) *Subscription {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var replay *models.Task
	if t, ok := s.tasks[id]; ok {
		snap := t.Clone()
		replay = &snap
	}
	return s.hub.Subscribe(id, replay)
}

func (s *TaskStore) Unsubscribe(sub *Subscription) {
	s.hub.Unsubscribe(sub)
}
