package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kirillkom/extraction-workbench/internal/core/domain"
)

// RuleRepository keeps every saved version of each rule.
type RuleRepository struct {
	mu       sync.RWMutex
	current  map[string]domain.ExtractionRule
	versions map[string]map[int]domain.ExtractionRule
}

func NewRuleRepository() *RuleRepository {
	return &RuleRepository{
		current:  make(map[string]domain.ExtractionRule),
		versions: make(map[string]map[int]domain.ExtractionRule),
	}
}

func (r *RuleRepository) List(context.Context) ([]domain.ExtractionRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.ExtractionRule, 0, len(r.current))
	for _, rule := range r.current {
		out = append(out, rule.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DocType != out[j].DocType {
			return out[i].DocType < out[j].DocType
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *RuleRepository) GetByID(_ context.Context, id string) (domain.ExtractionRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.current[id]
	if !ok {
		return domain.ExtractionRule{}, domain.WrapError(domain.ErrRuleNotFound, "get rule", fmt.Errorf("id=%s", id))
	}
	return rule.Clone(), nil
}

func (r *RuleRepository) GetVersion(_ context.Context, id string, version int) (domain.ExtractionRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.versions[id][version]
	if !ok {
		return domain.ExtractionRule{}, domain.WrapError(domain.ErrRuleNotFound, "get rule version", fmt.Errorf("id=%s version=%d", id, version))
	}
	return rule.Clone(), nil
}

// Save replaces the rule by id. A version lower than the stored one is refused.
func (r *RuleRepository) Save(_ context.Context, rule domain.ExtractionRule) error {
	if rule.ID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "save rule", fmt.Errorf("rule id is required"))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if stored, ok := r.current[rule.ID]; ok && stored.Version > rule.Version {
		return domain.WrapError(domain.ErrStaleRule, "save rule", fmt.Errorf("id=%s stored=%d got=%d", rule.ID, stored.Version, rule.Version))
	}
	r.store(rule)
	return nil
}

// Replace stores rule only if nothing was written since rule was read.
func (r *RuleRepository) Replace(_ context.Context, rule domain.ExtractionRule) (domain.ExtractionRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.current[rule.ID]
	if !ok {
		return domain.ExtractionRule{}, domain.WrapError(domain.ErrRuleNotFound, "replace rule", fmt.Errorf("id=%s", rule.ID))
	}
	if stored.Revision != rule.Revision || stored.Version > rule.Version {
		return domain.ExtractionRule{}, domain.WrapError(domain.ErrStaleRule, "replace rule",
			fmt.Errorf("id=%s stored=v%d/r%d got=v%d/r%d", rule.ID, stored.Version, stored.Revision, rule.Version, rule.Revision))
	}
	next := rule.Clone()
	next.Revision = stored.Revision + 1
	r.store(next)
	return next.Clone(), nil
}

func (r *RuleRepository) store(rule domain.ExtractionRule) {
	r.current[rule.ID] = rule.Clone()
	if r.versions[rule.ID] == nil {
		r.versions[rule.ID] = make(map[int]domain.ExtractionRule)
	}
	r.versions[rule.ID][rule.Version] = rule.Clone()
}

func (r *RuleRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.current[id]; !ok {
		return domain.WrapError(domain.ErrRuleNotFound, "delete rule", fmt.Errorf("id=%s", id))
	}
	delete(r.current, id)
	delete(r.versions, id)
	return nil
}
