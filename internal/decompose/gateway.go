package decompose

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"enterprise_sim/internal/advisory"
	"enterprise_sim/internal/domain"
)

const (
	MinTasks = 3
	MaxTasks = 5
)

var ErrNoTasks = errors.New("decomposition produced no usable tasks")

// Gateway turns an outcome into task specs through the advisor. It never
// fails loudly: on any problem it returns an empty slice alongside the cause.
//
// With a cache, an outcome whose trimmed title and constraints match an earlier
// successful one reuses that plan without asking the advisor again.
type Gateway struct {
	advisor advisory.Advisor
	cache   *lru.Cache[string, []domain.TaskSpec]
	logger  *log.Logger
}

// New builds a gateway. cacheSize <= 0 disables the cache so every outcome
// is decomposed afresh.
func New(advisor advisory.Advisor, cacheSize int, logger *log.Logger) (*Gateway, error) {
	if advisor == nil {
		advisor = advisory.Unavailable{}
	}
	if logger == nil {
		logger = log.Default()
	}
	g := &Gateway{advisor: advisor, logger: logger}
	if cacheSize > 0 {
		cache, err := lru.New[string, []domain.TaskSpec](cacheSize)
		if err != nil {
			return nil, fmt.Errorf("create decomposition cache: %w", err)
		}
		g.cache = cache
	}
	return g, nil
}

// Decompose returns up to MaxTasks sanitized specs. The returned slice is
// empty, never nil, whenever err is set.
func (g *Gateway) Decompose(ctx context.Context, title, constraints string) ([]domain.TaskSpec, error) {
	key := cacheKey(title, constraints)
	if g.cache != nil {
		if cached, ok := g.cache.Get(key); ok {
			return cloneSpecs(cached), nil
		}
	}

	raw, err := g.advisor.Decompose(ctx, title, constraints)
	if err != nil {
		g.logger.Printf("decompose failed title=%q: %v", title, err)
		return []domain.TaskSpec{}, err
	}
	specs := Sanitize(raw)
	if len(specs) == 0 {
		g.logger.Printf("decompose returned no usable tasks title=%q raw=%d", title, len(raw))
		return []domain.TaskSpec{}, ErrNoTasks
	}
	if len(specs) < MinTasks {
		g.logger.Printf("decompose returned fewer tasks than requested title=%q got=%d", title, len(specs))
	}
	if g.cache != nil {
		g.cache.Add(key, cloneSpecs(specs))
	}
	return specs, nil
}

// Sanitize drops untitled specs, clamps budgets to zero, normalizes priority
// and keeps at most MaxTasks.
func Sanitize(raw []domain.TaskSpec) []domain.TaskSpec {
	out := make([]domain.TaskSpec, 0, MaxTasks)
	for _, spec := range raw {
		if len(out) == MaxTasks {
			break
		}
		spec.Title = strings.TrimSpace(spec.Title)
		if spec.Title == "" {
			continue
		}
		spec.Description = strings.TrimSpace(spec.Description)
		if spec.Budget < 0 {
			spec.Budget = 0
		}
		spec.Priority = domain.NormalizePriority(spec.Priority)
		spec.RequiredCapabilities = cleanCapabilities(spec.RequiredCapabilities)
		out = append(out, spec)
	}
	return out
}

func cleanCapabilities(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, c := range in {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

func cacheKey(title, constraints string) string {
	return strings.TrimSpace(title) + "\x00" + strings.TrimSpace(constraints)
}

func cloneSpecs(in []domain.TaskSpec) []domain.TaskSpec {
	out := make([]domain.TaskSpec, len(in))
	for i, s := range in {
		s.RequiredCapabilities = append([]string(nil), s.RequiredCapabilities...)
		out[i] = s
	}
	return out
}
