package analytics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitelens/internal/events"
	"sitelens/internal/funnels"
	"sitelens/internal/sessions"
	"sitelens/internal/testsupport"
)

var funnelBase = time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

func cartPurchaseSteps() []funnels.FunnelStep {
	return []funnels.FunnelStep{
		{StepNumber: 1, StepType: funnels.StepTypeURL, MatchValue: "/cart"},
		{StepNumber: 2, StepType: funnels.StepTypeEvent, MatchValue: "purchase"},
	}
}

func TestAnalyzeFunnelSteps_CartPurchaseScenario(t *testing.T) {
	// 10 sessions visit /cart, 4 of them later fire purchase
	var evts []events.Event
	for i := 0; i < 10; i++ {
		sid := fmt.Sprintf("s%d", i)
		evts = append(evts, testsupport.PageView(1, sid, "/cart", funnelBase))
		if i < 4 {
			evts = append(evts, testsupport.CustomEvent(1, sid, "purchase", "", funnelBase.Add(time.Minute)))
		}
	}

	steps := AnalyzeFunnelSteps(cartPurchaseSteps(), sessions.Reconstruct(evts))
	require.Len(t, steps, 2)

	assert.Equal(t, int64(10), steps[0].Sessions)
	assert.InDelta(t, 100.0, steps[0].ConversionRate, 0.001)
	assert.InDelta(t, 0.0, steps[0].DropOffRate, 0.001)
	assert.Nil(t, steps[0].AvgTimeFromPrev)

	assert.Equal(t, int64(4), steps[1].Sessions)
	assert.InDelta(t, 40.0, steps[1].ConversionRate, 0.001)
	assert.InDelta(t, 60.0, steps[1].DropOffRate, 0.001)
	if assert.NotNil(t, steps[1].AvgTimeFromPrev) {
		assert.InDelta(t, 60.0, *steps[1].AvgTimeFromPrev, 0.001)
	}
}

func TestAnalyzeFunnelSteps_MonotonicallyNonIncreasing(t *testing.T) {
	steps := []funnels.FunnelStep{
		{StepNumber: 1, StepType: funnels.StepTypeURL, MatchValue: "/"},
		{StepNumber: 2, StepType: funnels.StepTypeURL, MatchValue: "/pricing"},
		{StepNumber: 3, StepType: funnels.StepTypeEvent, MatchValue: "signup"},
	}

	evts := []events.Event{
		testsupport.PageView(1, "s1", "/", funnelBase),
		testsupport.PageView(1, "s1", "/pricing", funnelBase.Add(time.Minute)),
		testsupport.CustomEvent(1, "s1", "signup", "", funnelBase.Add(2*time.Minute)),
		testsupport.PageView(1, "s2", "/", funnelBase),
		testsupport.PageView(1, "s2", "/pricing", funnelBase.Add(time.Minute)),
		// s3 fires signup without ever reaching /pricing; it must not
		// reappear at step 3
		testsupport.PageView(1, "s3", "/", funnelBase),
		testsupport.CustomEvent(1, "s3", "signup", "", funnelBase.Add(time.Minute)),
	}

	analyses := AnalyzeFunnelSteps(steps, sessions.Reconstruct(evts))
	require.Len(t, analyses, 3)
	assert.Equal(t, int64(3), analyses[0].Sessions)
	assert.Equal(t, int64(2), analyses[1].Sessions)
	assert.Equal(t, int64(1), analyses[2].Sessions)
	for i := 1; i < len(analyses); i++ {
		assert.LessOrEqual(t, analyses[i].Sessions, analyses[i-1].Sessions)
	}
}

func TestAnalyzeFunnelSteps_EqualTimestampDoesNotAdvance(t *testing.T) {
	evts := []events.Event{
		testsupport.PageView(1, "s1", "/cart", funnelBase),
		testsupport.CustomEvent(1, "s1", "purchase", "", funnelBase),
	}

	steps := AnalyzeFunnelSteps(cartPurchaseSteps(), sessions.Reconstruct(evts))
	require.Len(t, steps, 2)
	assert.Equal(t, int64(1), steps[0].Sessions)
	assert.Equal(t, int64(0), steps[1].Sessions)
}

func TestAnalyzeFunnelSteps_EventBeforeStepDoesNotCount(t *testing.T) {
	evts := []events.Event{
		testsupport.CustomEvent(1, "s1", "purchase", "", funnelBase),
		testsupport.PageView(1, "s1", "/cart", funnelBase.Add(time.Minute)),
	}

	steps := AnalyzeFunnelSteps(cartPurchaseSteps(), sessions.Reconstruct(evts))
	require.Len(t, steps, 2)
	assert.Equal(t, int64(1), steps[0].Sessions)
	assert.Equal(t, int64(0), steps[1].Sessions)
}

func TestAnalyzeFunnelSteps_NoSessions(t *testing.T) {
	steps := AnalyzeFunnelSteps(cartPurchaseSteps(), nil)
	require.Len(t, steps, 2)
	assert.Equal(t, int64(0), steps[0].Sessions)
	assert.Equal(t, 0.0, steps[0].ConversionRate)
	assert.Equal(t, 0.0, steps[0].DropOffRate)
}

func TestAnalyzeFunnel_WrongProjectIsNotFound(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	owner := testsupport.CreateTestProject(db, "owner.example.com")
	other := testsupport.CreateTestProject(db, "other.example.com")

	funnel := testsupport.CreateTestFunnel(t, db, owner.ID, "Checkout", cartPurchaseSteps())

	params := NewProjectScopedQueryParams(weekFrame(funnelBase), other.ID)
	_, err := AnalyzeFunnel(db, params, funnel.ID)
	require.Error(t, err)

	var notFound *funnels.FunnelNotFoundError
	assert.True(t, errors.As(err, &notFound))
}

func TestAnalyzeFunnel_EndToEnd(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	project := testsupport.CreateTestProject(db, "funnel.example.com")
	funnel := testsupport.CreateTestFunnel(t, db, project.ID, "Checkout", cartPurchaseSteps())

	testsupport.SaveEvents(t, db, []events.Event{
		testsupport.PageView(project.ID, "s1", "/cart", funnelBase),
		testsupport.CustomEvent(project.ID, "s1", "purchase", "", funnelBase.Add(time.Minute)),
		testsupport.PageView(project.ID, "s2", "/cart", funnelBase),
	})

	params := NewProjectScopedQueryParams(weekFrame(funnelBase.Add(time.Hour)), project.ID)
	analysis, err := AnalyzeFunnel(db, params, funnel.ID)
	require.NoError(t, err)

	assert.Equal(t, int64(2), analysis.TotalSessions)
	require.Len(t, analysis.Steps, 2)
	assert.Equal(t, int64(2), analysis.Steps[0].Sessions)
	assert.Equal(t, int64(1), analysis.Steps[1].Sessions)
}
