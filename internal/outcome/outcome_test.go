package outcome

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"verax/internal/model"
)

func TestMeetsExpectationNavigation(t *testing.T) {
	assert.True(t, MeetsExpectation(model.OutcomeNavigation, model.Signals{NavigationChanged: true}))
	assert.True(t, MeetsExpectation(model.OutcomeNavigation, model.Signals{RouteChanged: true}))
	assert.False(t, MeetsExpectation(model.OutcomeNavigation, model.Signals{}))
}

func TestMeetsExpectationFeedback(t *testing.T) {
	assert.True(t, MeetsExpectation(model.OutcomeFeedback, model.Signals{FeedbackSeen: true}))
	assert.False(t, MeetsExpectation(model.OutcomeFeedback, model.Signals{DOMChanged: true}))
}

func TestMeetsExpectationNetwork(t *testing.T) {
	assert.True(t, MeetsExpectation(model.OutcomeNetwork, model.Signals{NetworkActivity: true}))
	assert.True(t, MeetsExpectation(model.OutcomeNetwork, model.Signals{CorrelatedNetworkActivity: true}))
}

func TestMeetsExpectationUIChange(t *testing.T) {
	assert.True(t, MeetsExpectation(model.OutcomeUIChange, model.Signals{MeaningfulDOMChange: true}))
	assert.False(t, MeetsExpectation(model.OutcomeUIChange, model.Signals{DOMChanged: true}))
}

func TestClassifyPrecedenceUserNavigationWins(t *testing.T) {
	got := Classify(model.Signals{}, NetworkObservation{
		UserNavigated:      true,
		CorrelatedStatuses: []int{401},
	})
	assert.Equal(t, model.SilenceUserNavigation, got)
}

func TestClassifyAuthBeforeNetworkTimeout(t *testing.T) {
	got := Classify(model.Signals{}, NetworkObservation{
		CorrelatedStatuses: []int{403},
		NoResponseReceived: true,
	})
	assert.Equal(t, model.SilenceBlockedByAuth, got)
}

func TestClassifyNetworkTimeoutOnNoResponse(t *testing.T) {
	got := Classify(model.Signals{}, NetworkObservation{NoResponseReceived: true})
	assert.Equal(t, model.SilenceNetworkTimeout, got)
}

func TestClassifyUIRenderFailureOnNonMeaningfulChange(t *testing.T) {
	got := Classify(model.Signals{DOMChanged: true, MeaningfulDOMChange: false}, NetworkObservation{
		CorrelatedStatuses: []int{200},
	})
	assert.Equal(t, model.SilenceUIRenderFailure, got)
}

func TestClassifyServerSideOnlyWhenNoDOMChangeAtAll(t *testing.T) {
	got := Classify(model.Signals{DOMChanged: false}, NetworkObservation{
		CorrelatedStatuses: []int{204},
	})
	assert.Equal(t, model.SilenceServerSideOnly, got)
}

func TestClassifySlowAcknowledgment(t *testing.T) {
	got := Classify(model.Signals{}, NetworkObservation{AcknowledgedLate: true})
	assert.Equal(t, model.SilenceSlowAck, got)
}

func TestClassifyTrueSilenceIsDefault(t *testing.T) {
	got := Classify(model.Signals{}, NetworkObservation{})
	assert.Equal(t, model.SilenceTrue, got)
}
