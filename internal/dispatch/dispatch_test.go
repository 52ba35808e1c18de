package dispatch

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveSelectorPrefersSelectorPath(t *testing.T) {
	got := resolveSelector(Target{Selector: "#id", SelectorPath: "a:nth-child(1)>::shadow>button"})
	assert.Equal(t, "a:nth-child(1)>::shadow>button", got)
}

func TestResolveSelectorFallsBackToSelector(t *testing.T) {
	got := resolveSelector(Target{Selector: "#id"})
	assert.Equal(t, "#id", got)
}

func TestClassifyClickErrorTimeout(t *testing.T) {
	assert.Contains(t, classifyClickError(errors.New("wait timeout exceeded")), "timeout:")
}

func TestClassifyClickErrorNotFound(t *testing.T) {
	assert.Contains(t, classifyClickError(errors.New("element not found")), "not-found:")
}

func TestClassifyClickErrorDefaultsToBlocked(t *testing.T) {
	assert.Contains(t, classifyClickError(errors.New("obscured by overlay")), "interactable/blocked:")
}

func TestSplitShadowSegmentsNoShadowCrossing(t *testing.T) {
	got := splitShadowSegments("div:nth-child(1)>a:nth-child(2)")
	assert.Equal(t, []string{"div:nth-child(1)>a:nth-child(2)"}, got)
}

func TestSplitShadowSegmentsSingleCrossing(t *testing.T) {
	got := splitShadowSegments("div:nth-child(1)>my-widget:nth-child(2)>::shadow>button:nth-child(1)")
	assert.Equal(t, []string{
		"div:nth-child(1)>my-widget:nth-child(2)",
		"button:nth-child(1)",
	}, got)
}

func TestSplitShadowSegmentsNestedShadowRoots(t *testing.T) {
	got := splitShadowSegments("outer-el>::shadow>inner-el>::shadow>span:nth-child(1)")
	assert.Equal(t, []string{"outer-el", "inner-el", "span:nth-child(1)"}, got)
}
