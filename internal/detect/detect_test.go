package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verax/internal/intent"
	"verax/internal/model"
)

func baseAttempt() model.Attempt {
	return model.Attempt{
		ExpectationID: "expect-1",
		Kind:          model.KindNavigation,
		Attempted:     true,
		Observed:      false,
		Cause:         model.CauseNoChange,
		SilenceKind:   model.SilenceTrue,
		EvidenceFiles: []string{"evidence/expect-1/dom_digest.json"},
	}
}

func TestDetectSkipsObservedAttempts(t *testing.T) {
	a := baseAttempt()
	a.Observed = true
	findings, _ := Detect([]model.Attempt{a}, []Plan{{}})
	assert.Empty(t, findings)
}

func TestDetectSkipsUnattemptedAttempts(t *testing.T) {
	a := baseAttempt()
	a.Attempted = false
	findings, _ := Detect([]model.Attempt{a}, []Plan{{}})
	assert.Empty(t, findings)
}

func TestDetectSkipsExecutionErrors(t *testing.T) {
	a := baseAttempt()
	a.Cause = model.CauseError
	findings, _ := Detect([]model.Attempt{a}, []Plan{{}})
	assert.Empty(t, findings)
}

func TestDetectEmitsSilentFailureWithoutNavIntent(t *testing.T) {
	a := baseAttempt()
	plan := Plan{Expectation: model.Expectation{ExpectedOutcome: model.OutcomeNavigation}}
	findings, _ := Detect([]model.Attempt{a}, []Plan{plan})
	require.Len(t, findings, 1)
	assert.Equal(t, TypeSilentFailure, findings[0].Type)
	assert.Contains(t, findings[0].Evidence.Categories, model.CategoryNavigation)
}

func TestDetectAppliesP10IntentGateForBrokenNavigation(t *testing.T) {
	a := baseAttempt()
	a.Signals.NavigationChanged = false
	plan := Plan{
		Expectation: model.Expectation{ExpectedOutcome: model.OutcomeNavigation},
		NavIntent:   intent.NavFullPage,
	}
	findings, _ := Detect([]model.Attempt{a}, []Plan{plan})
	require.Len(t, findings, 1)
	assert.Equal(t, TypeBrokenNavigationPromise, findings[0].Type)
}

func TestDetectSuppressesFindingWhenNavContractWasMet(t *testing.T) {
	a := baseAttempt()
	a.Signals.NavigationChanged = true
	plan := Plan{
		Expectation: model.Expectation{ExpectedOutcome: model.OutcomeNavigation},
		NavIntent:   intent.NavFullPage,
	}
	findings, _ := Detect([]model.Attempt{a}, []Plan{plan})
	assert.Empty(t, findings)
}

func TestDetectConfirmedRequiresEvidenceFiles(t *testing.T) {
	a := baseAttempt()
	a.EvidenceFiles = nil
	plan := Plan{Expectation: model.Expectation{ExpectedOutcome: model.OutcomeNavigation}}
	findings, _ := Detect([]model.Attempt{a}, []Plan{plan})
	require.Len(t, findings, 1)
	assert.NotEqual(t, model.StatusConfirmed, findings[0].Status)
}

func TestDetectLowConfidenceCausesAreSuspectedOrInformational(t *testing.T) {
	a := baseAttempt()
	a.SilenceKind = model.SilenceUserNavigation
	plan := Plan{Expectation: model.Expectation{ExpectedOutcome: model.OutcomeNavigation}}
	findings, _ := Detect([]model.Attempt{a}, []Plan{plan})
	require.Len(t, findings, 1)
	assert.NotEqual(t, model.StatusConfirmed, findings[0].Status)
}

func TestDetectReasonsAreBoundedAndStable(t *testing.T) {
	a := baseAttempt()
	plan := Plan{
		Expectation: model.Expectation{ExpectedOutcome: model.OutcomeNavigation},
		NavIntent:   intent.NavFullPage,
	}
	first, _ := Detect([]model.Attempt{a}, []Plan{plan})
	second, _ := Detect([]model.Attempt{a}, []Plan{plan})
	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.GreaterOrEqual(t, len(first[0].ConfidenceReasons), 2)
	assert.LessOrEqual(t, len(first[0].ConfidenceReasons), 4)
	assert.Equal(t, first[0].ConfidenceReasons, second[0].ConfidenceReasons)
}

func TestDetectRoutesAttributeOnlyChangeToOutOfScopeFeedback(t *testing.T) {
	a := baseAttempt()
	a.Signals.AttributeOnlyChange = true
	plan := Plan{Expectation: model.Expectation{ExpectedOutcome: model.OutcomeNavigation}}
	findings, outOfScope := Detect([]model.Attempt{a}, []Plan{plan})
	assert.Empty(t, findings)
	require.Len(t, outOfScope, 1)
	assert.Equal(t, "expect-1", outOfScope[0].ExpectationID)
	assert.Equal(t, "attribute_only_dom_change", outOfScope[0].Reason)
}

func TestDetectFindingIDsAreStable(t *testing.T) {
	a := baseAttempt()
	plan := Plan{Expectation: model.Expectation{ExpectedOutcome: model.OutcomeNavigation}}
	f1, _ := Detect([]model.Attempt{a}, []Plan{plan})
	f2, _ := Detect([]model.Attempt{a}, []Plan{plan})
	require.Len(t, f1, 1)
	require.Len(t, f2, 1)
	assert.Equal(t, f1[0].ID, f2[0].ID)
}
