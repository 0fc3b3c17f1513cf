package insight

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
	"enterprise_sim/internal/enterprise"
)

func newSurfacer(adv advisory.Advisor) (*Surfacer, *enterprise.State) {
	state := enterprise.New(nil)
	return New(state, adv, Config{}, log.New(io.Discard, "", 0)), state
}

func TestHealthSummaryFallbacks(t *testing.T) {
	cases := []struct {
		name string
		adv  advisory.Advisor
		want string
	}{
		{name: "unavailable", adv: advisory.Unavailable{}, want: UnavailableSummary},
		{name: "failure", adv: &advisory.Scripted{
			SummarizeFunc: func(context.Context, domain.MetricsSnapshot, []domain.LogEntry) (string, error) {
				return "", fmt.Errorf("%w: 500", advisory.ErrCallFailed)
			},
		}, want: FailedSummary},
		{name: "empty", adv: &advisory.Scripted{
			SummarizeFunc: func(context.Context, domain.MetricsSnapshot, []domain.LogEntry) (string, error) {
				return "   ", nil
			},
		}, want: EmptySummary},
		{name: "ok", adv: &advisory.Scripted{
			SummarizeFunc: func(context.Context, domain.MetricsSnapshot, []domain.LogEntry) (string, error) {
				return " Stable. ", nil
			},
		}, want: "Stable."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, state := newSurfacer(tc.adv)
			assert.Equal(t, tc.want, s.RefreshHealth(context.Background()))
			assert.Equal(t, tc.want, state.Analysis())
		})
	}
}

func TestHealthRefreshCadence(t *testing.T) {
	var windows []int
	adv := &advisory.Scripted{
		SummarizeFunc: func(_ context.Context, _ domain.MetricsSnapshot, logs []domain.LogEntry) (string, error) {
			windows = append(windows, len(logs))
			return fmt.Sprintf("summary %d", len(windows)), nil
		},
	}
	s, state := newSurfacer(adv)
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		state.Record(domain.LogKindInfo, "x", "")
		assert.False(t, s.MaybeRefreshHealth(ctx), "log %d", i)
	}
	state.Record(domain.LogKindInfo, "x", "")
	assert.True(t, s.MaybeRefreshHealth(ctx))
	assert.False(t, s.MaybeRefreshHealth(ctx), "same bucket")

	for i := 0; i < 7; i++ {
		state.Record(domain.LogKindInfo, "x", "")
	}
	assert.True(t, s.MaybeRefreshHealth(ctx), "crossed 10")
	assert.Equal(t, "summary 2", state.Analysis())
	assert.Equal(t, []int{5, 10}, windows)

	state.Reset()
	s.Reset()
	for i := 0; i < 5; i++ {
		state.Record(domain.LogKindInfo, "x", "")
	}
	assert.True(t, s.MaybeRefreshHealth(ctx))
}

func TestRefreshInsightsTruncatesAndLogs(t *testing.T) {
	var got advisory.InsightInput
	adv := &advisory.Scripted{
		PredictFunc: func(_ context.Context, in advisory.InsightInput) ([]advisory.Insight, error) {
			got = in
			return []advisory.Insight{
				{Message: "Bottleneck in assembly", Severity: "HIGH", SuggestedAction: "Add capacity"},
				{Message: "", Severity: "LOW"},
				{Message: "Idle finance connector", Severity: "bogus"},
				{Message: "Third one", Severity: "MEDIUM"},
			}, nil
		},
	}
	s, state := newSurfacer(adv)
	_, err := state.MarkOffline("h1")
	require.NoError(t, err)

	added := s.RefreshInsights(context.Background())
	require.Len(t, added, 2)
	assert.Equal(t, domain.SeverityHigh, added[0].Severity)
	assert.Equal(t, domain.SeverityLow, added[1].Severity)
	assert.NotEmpty(t, added[0].ID)
	assert.Equal(t, advisory.InsightInput{ActiveTasks: 0, ActiveAgents: 1, TotalAgents: 7}, got)

	assert.Len(t, state.Predictions(), 2)
	assert.Equal(t, insightsLogMessage, state.Logs()[0].Message)
}

func TestRefreshInsightsFailureYieldsNothing(t *testing.T) {
	for _, err := range []error{advisory.ErrUnavailable, advisory.ErrCallFailed, errors.New("other")} {
		adv := &advisory.Scripted{
			PredictFunc: func(context.Context, advisory.InsightInput) ([]advisory.Insight, error) {
				return nil, err
			},
		}
		s, state := newSurfacer(adv)
		assert.Nil(t, s.RefreshInsights(context.Background()))
		assert.Empty(t, state.Predictions())
		assert.Empty(t, state.Logs())
	}
}
