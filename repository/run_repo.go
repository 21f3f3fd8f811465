package repository

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/openpariksha/pariksha-be/types"
)

var ErrRunNotFound = errors.New("pipeline run not found")

// RunRepository stores pipeline runs. The in-memory implementation is the
// default; a MongoDB-backed one is selected when a connection string is
// configured. Both keep the same semantics: runs are replaced wholesale on
// update and listed newest first.
type RunRepository interface {
	CreateRun(ctx context.Context, run *types.PipelineRun) error
	GetRun(ctx context.Context, id string) (*types.PipelineRun, error)
	UpdateRun(ctx context.Context, run *types.PipelineRun) error
	ListRuns(ctx context.Context, paper string, status []string, limit int) ([]*types.PipelineRun, error)
	CountRuns(ctx context.Context) (total int64, active int64, err error)
}

type memoryRunRepo struct {
	mu   sync.RWMutex
	runs map[string]types.PipelineRun
}

func NewMemoryRunRepo() RunRepository {
	return &memoryRunRepo{runs: make(map[string]types.PipelineRun)}
}

func (r *memoryRunRepo) CreateRun(_ context.Context, run *types.PipelineRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.ID] = *run
	return nil
}

func (r *memoryRunRepo) GetRun(_ context.Context, id string) (*types.PipelineRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return &run, nil
}

func (r *memoryRunRepo) UpdateRun(_ context.Context, run *types.PipelineRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.runs[run.ID]; !ok {
		return ErrRunNotFound
	}
	r.runs[run.ID] = *run
	return nil
}

func (r *memoryRunRepo) ListRuns(_ context.Context, paper string, status []string, limit int) ([]*types.PipelineRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*types.PipelineRun, 0, len(r.runs))
	for _, run := range r.runs {
		if paper != "" && run.Paper != paper {
			continue
		}
		if len(status) > 0 && !containsString(status, run.Status) {
			continue
		}
		copied := run
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreateAt != out[j].CreateAt {
			return out[i].CreateAt > out[j].CreateAt
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryRunRepo) CountRuns(_ context.Context) (int64, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var active int64
	for _, run := range r.runs {
		if run.Status == types.RUN_STATUS_RUNNING {
			active++
		}
	}
	return int64(len(r.runs)), active, nil
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
