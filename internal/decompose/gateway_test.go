package decompose

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"enterprise_sim/internal/advisory"
	"enterprise_sim/internal/domain"
)

func newGateway(t *testing.T, adv advisory.Advisor) *Gateway {
	t.Helper()
	g, err := New(adv, 8, log.New(io.Discard, "", 0))
	require.NoError(t, err)
	return g
}

func TestDecomposeLaunchOutcome(t *testing.T) {
	adv := &advisory.Scripted{
		DecomposeFunc: func(_ context.Context, title, constraints string) ([]domain.TaskSpec, error) {
			assert.Equal(t, "Launch X", title)
			assert.Equal(t, "Budget $50k", constraints)
			return []domain.TaskSpec{
				{Title: "Market research", RequiredCapabilities: []string{"Analysis"}, Budget: 10000, Priority: "HIGH"},
				{Title: "Build prototype", RequiredCapabilities: []string{"Assembly", "Engineering"}, Budget: 25000, Priority: "CRITICAL"},
				{Title: "Go-to-market plan", RequiredCapabilities: []string{"Strategy"}, Budget: 15000, Priority: "MEDIUM"},
			}, nil
		},
	}
	g := newGateway(t, adv)

	specs, err := g.Decompose(context.Background(), "Launch X", "Budget $50k")
	require.NoError(t, err)
	require.Len(t, specs, 3)
	assert.Equal(t, domain.PriorityCritical, specs[1].Priority)

	again, err := g.Decompose(context.Background(), "Launch X", "Budget $50k")
	require.NoError(t, err)
	assert.Equal(t, specs, again)
	assert.Equal(t, 1, adv.Calls("decompose"), "second call served from cache")

	again[0].RequiredCapabilities[0] = "mutated"
	third, _ := g.Decompose(context.Background(), "Launch X", "Budget $50k")
	assert.Equal(t, "Analysis", third[0].RequiredCapabilities[0])
}

func TestSanitize(t *testing.T) {
	raw := []domain.TaskSpec{
		{Title: "  ", Budget: 10},
		{Title: "Negative", Budget: -40, Priority: "urgent"},
		{Title: "Dupes", RequiredCapabilities: []string{"QC", " QC", ""}, Priority: "low"},
	}
	for i := 0; i < 6; i++ {
		raw = append(raw, domain.TaskSpec{Title: fmt.Sprintf("extra %d", i)})
	}

	got := Sanitize(raw)
	require.Len(t, got, MaxTasks)
	assert.Equal(t, "Negative", got[0].Title)
	assert.Equal(t, 0, got[0].Budget)
	assert.Equal(t, domain.PriorityMedium, got[0].Priority)
	assert.Equal(t, []string{"QC"}, got[1].RequiredCapabilities)
	assert.Equal(t, domain.PriorityLow, got[1].Priority)
	assert.Equal(t, "extra 2", got[4].Title)
}

func TestDecomposeFailuresYieldEmpty(t *testing.T) {
	cases := []struct {
		name string
		adv  advisory.Advisor
		want error
	}{
		{name: "unavailable", adv: advisory.Unavailable{}, want: advisory.ErrUnavailable},
		{name: "call failed", adv: &advisory.Scripted{
			DecomposeFunc: func(context.Context, string, string) ([]domain.TaskSpec, error) {
				return nil, fmt.Errorf("%w: boom", advisory.ErrCallFailed)
			},
		}, want: advisory.ErrCallFailed},
		{name: "nothing usable", adv: &advisory.Scripted{
			DecomposeFunc: func(context.Context, string, string) ([]domain.TaskSpec, error) {
				return []domain.TaskSpec{{Title: ""}}, nil
			},
		}, want: ErrNoTasks},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			specs, err := newGateway(t, tc.adv).Decompose(context.Background(), "Launch X", "")
			assert.True(t, errors.Is(err, tc.want), "err=%v", err)
			assert.NotNil(t, specs)
			assert.Empty(t, specs)
		})
	}
}

func TestFailuresAreNotCached(t *testing.T) {
	fail := true
	adv := &advisory.Scripted{
		DecomposeFunc: func(context.Context, string, string) ([]domain.TaskSpec, error) {
			if fail {
				return nil, advisory.ErrCallFailed
			}
			return []domain.TaskSpec{{Title: "a"}, {Title: "b"}, {Title: "c"}}, nil
		},
	}
	g := newGateway(t, adv)
	_, err := g.Decompose(context.Background(), "Hire team", "")
	require.Error(t, err)
	fail = false
	specs, err := g.Decompose(context.Background(), "Hire team", "")
	require.NoError(t, err)
	assert.Len(t, specs, 3)
	assert.Equal(t, 2, adv.Calls("decompose"))
}

func TestDecomposeWithoutCacheAsksEveryTime(t *testing.T) {
	n := 0
	adv := &advisory.Scripted{
		DecomposeFunc: func(context.Context, string, string) ([]domain.TaskSpec, error) {
			n++
			return []domain.TaskSpec{{Title: fmt.Sprintf("plan %d", n)}}, nil
		},
	}
	g, err := New(adv, 0, log.New(io.Discard, "", 0))
	require.NoError(t, err)

	first, err := g.Decompose(context.Background(), "Launch X", "Q3")
	require.NoError(t, err)
	second, err := g.Decompose(context.Background(), "Launch X", "Q3")
	require.NoError(t, err)

	assert.Equal(t, 2, adv.Calls("decompose"))
	assert.Equal(t, "plan 1", first[0].Title)
	assert.Equal(t, "plan 2", second[0].Title)
}
