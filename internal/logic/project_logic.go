package logic

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/blues/carbonledger/internal/ledger"
	"github.com/blues/carbonledger/internal/logger"
	"github.com/blues/carbonledger/internal/model"
)

// ProjectRegistry 项目注册表, 持有项目缓存并执行状态迁移
//
// 状态机: pending -> verified -> issued, pending -> rejected.
// 缓存只通过本类型的方法或整体替换修改.
type ProjectRegistry struct {
	mu       sync.RWMutex
	projects map[uint64]model.Project
	epoch    uint64 // 每次乐观更新递增
	gateway  ledger.Gateway
}

// NewProjectRegistry 创建项目注册表
func NewProjectRegistry(gateway ledger.Gateway) *ProjectRegistry {
	return &ProjectRegistry{
		projects: make(map[uint64]model.Project),
		gateway:  gateway,
	}
}

// Refresh 从账本全量查询并覆盖缓存
//
// 查询期间发生过乐观更新时丢弃本次结果, 该更新自己会触发新的刷新.
func (r *ProjectRegistry) Refresh(ctx context.Context) error {
	r.mu.RLock()
	epoch := r.epoch
	r.mu.RUnlock()

	projects, err := r.gateway.QueryProjects(ctx)
	if err != nil {
		return fmt.Errorf("refresh projects: %w", err)
	}

	r.mu.Lock()
	if r.epoch != epoch {
		r.mu.Unlock()
		logger.Debug("Discarded project query issued before a local update")
		return nil
	}
	next := make(map[uint64]model.Project, len(projects))
	for _, p := range projects {
		if p.Status.Code() == model.StatusCodeNone {
			continue
		}
		p.Submitter = ledger.NormalizeAddress(r.gateway, p.Submitter)
		// 滞后的查询不能让状态倒退
		if cached, ok := r.projects[p.ID]; ok && stage(cached.Status) > stage(p.Status) {
			p = cached
		}
		next[p.ID] = p
	}
	r.projects = next
	r.mu.Unlock()

	logger.Debug("Refreshed %d projects", len(next))
	return nil
}

// List 返回按ID排序的项目列表
func (r *ProjectRegistry) List() []model.Project {
	return r.filter(func(model.Project) bool { return true })
}

// ByStatus 返回指定状态的项目
func (r *ProjectRegistry) ByStatus(status model.ProjectStatus) []model.Project {
	return r.filter(func(p model.Project) bool { return p.Status == status })
}

// BySubmitter 返回指定地址提交的项目
func (r *ProjectRegistry) BySubmitter(address string) []model.Project {
	return r.filter(func(p model.Project) bool { return p.Submitter == address })
}

// Get 获取单个项目
func (r *ProjectRegistry) Get(id uint64) (model.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.projects[id]
	if !ok {
		return model.Project{}, fmt.Errorf("project %d: %w", id, model.ErrProjectNotFound)
	}
	return p, nil
}

// Submit 提交新项目, 无角色限制
func (r *ProjectRegistry) Submit(ctx context.Context, caller string, meta model.ProjectMetadata) (model.Project, error) {
	id, err := r.gateway.SubmitProjectCreation(ctx, caller, meta)
	if err != nil {
		return model.Project{}, fmt.Errorf("%w: %w", model.ErrSubmission, err)
	}

	p := model.Project{
		ID:        id,
		Name:      meta.Name,
		Location:  meta.Location,
		Ecosystem: meta.Ecosystem,
		Submitter: caller,
		CID:       meta.CID,
		Status:    model.ProjectStatusPending,
	}
	r.put(p)

	logger.Info("Project %d submitted by %s", id, caller)
	return p, nil
}

// CheckApprove 本地校验审批前置条件
func (r *ProjectRegistry) CheckApprove(id, credits uint64) error {
	if credits == 0 {
		return fmt.Errorf("credits must be > 0: %w", model.ErrInvalidArgument)
	}
	return r.expectStatus(id, model.ProjectStatusPending)
}

// CheckReject 本地校验驳回前置条件
func (r *ProjectRegistry) CheckReject(id uint64) error {
	return r.expectStatus(id, model.ProjectStatusPending)
}

// CheckIssue 本地校验发放前置条件
func (r *ProjectRegistry) CheckIssue(id uint64) error {
	return r.expectStatus(id, model.ProjectStatusVerified)
}

// Approve 批准项目并设定碳信用数量
func (r *ProjectRegistry) Approve(ctx context.Context, caller string, id, credits uint64) error {
	if err := r.CheckApprove(id, credits); err != nil {
		return err
	}
	if err := r.gateway.SubmitApproval(ctx, caller, id, credits); err != nil {
		return fmt.Errorf("approve project %d: %w", id, err)
	}

	r.patch(id, func(p *model.Project) {
		p.Status = model.ProjectStatusVerified
		p.Credits = credits
	})
	logger.Info("Project %d verified with %d credits", id, credits)
	return nil
}

// Reject 驳回项目, 碳信用保持为0
func (r *ProjectRegistry) Reject(ctx context.Context, caller string, id uint64) error {
	if err := r.CheckReject(id); err != nil {
		return err
	}
	if err := r.gateway.SubmitRejection(ctx, caller, id); err != nil {
		return fmt.Errorf("reject project %d: %w", id, err)
	}

	r.patch(id, func(p *model.Project) {
		p.Status = model.ProjectStatusRejected
	})
	logger.Info("Project %d rejected", id)
	return nil
}

// Issue 发放碳信用给提交者, 返回项目快照
func (r *ProjectRegistry) Issue(ctx context.Context, caller string, id uint64) (model.Project, error) {
	if err := r.CheckIssue(id); err != nil {
		return model.Project{}, err
	}
	if err := r.gateway.SubmitIssuance(ctx, caller, id); err != nil {
		return model.Project{}, fmt.Errorf("issue credits for project %d: %w", id, err)
	}

	p := r.patch(id, func(p *model.Project) {
		p.Status = model.ProjectStatusIssued
	})
	logger.Info("Issued %d credits for project %d to %s", p.Credits, id, p.Submitter)
	return p, nil
}

// Stats 汇总项目统计, 写入 stats
func (r *ProjectRegistry) Stats(stats *model.Stats) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.projects {
		stats.TotalProjects++
		stats.TotalCredits += p.Credits
		switch p.Status {
		case model.ProjectStatusPending:
			stats.PendingProjects++
		case model.ProjectStatusVerified:
			stats.VerifiedProjects++
		case model.ProjectStatusRejected:
			stats.RejectedProjects++
		case model.ProjectStatusIssued:
			stats.IssuedProjects++
			stats.TotalCreditsIssued += p.Credits
		}
	}
}

// expectStatus 校验项目存在且处于指定状态
func (r *ProjectRegistry) expectStatus(id uint64, want model.ProjectStatus) error {
	p, err := r.Get(id)
	if err != nil {
		return err
	}
	if p.Status.Terminal() {
		return fmt.Errorf("project %d is already %s: %w", id, p.Status, model.ErrInvalidTransition)
	}
	if p.Status != want {
		return fmt.Errorf("project %d is %s, expected %s: %w", id, p.Status, want, model.ErrInvalidTransition)
	}
	return nil
}

// stage 状态在状态机中的先后位置
func stage(s model.ProjectStatus) int {
	switch s {
	case model.ProjectStatusPending:
		return 1
	case model.ProjectStatusVerified, model.ProjectStatusRejected:
		return 2
	case model.ProjectStatusIssued:
		return 3
	default:
		return 0
	}
}

func (r *ProjectRegistry) put(p model.Project) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.projects[p.ID] = p
	r.epoch++
}

// patch 乐观更新缓存中的项目, 项目已被刷新移除时不做任何修改
func (r *ProjectRegistry) patch(id uint64, fn func(p *model.Project)) model.Project {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.projects[id]
	if !ok {
		return p
	}
	fn(&p)
	r.projects[id] = p
	r.epoch++
	return p
}

func (r *ProjectRegistry) filter(keep func(model.Project) bool) []model.Project {
	r.mu.RLock()
	result := make([]model.Project, 0, len(r.projects))
	for _, p := range r.projects {
		if keep(p) {
			result = append(result, p)
		}
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}
