package evidence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnalyzeChangesDetectsNavigation(t *testing.T) {
	b := New("/tmp/evidence", "interaction-1")
	b.before = &snapshot{HTML: "<html></html>", URL: "https://example.com/a"}
	b.after = &snapshot{HTML: "<html></html>", URL: "https://example.com/b"}

	signals := b.AnalyzeChanges("https://example.com/a", "https://example.com/b", nil)

	assert.True(t, signals.NavigationChanged)
	assert.True(t, signals.RouteChanged)
}

func TestAnalyzeChangesDetectsMeaningfulDOMChange(t *testing.T) {
	b := New("/tmp/evidence", "interaction-2")
	b.before = &snapshot{HTML: "<html><body><p>before</p></body></html>", URL: "https://example.com/a"}
	b.after = &snapshot{HTML: "<html><body><p>after something new</p></body></html>", URL: "https://example.com/a"}

	signals := b.AnalyzeChanges("https://example.com/a", "https://example.com/a", nil)

	assert.True(t, signals.DOMChanged)
	assert.True(t, signals.MeaningfulDOMChange)
	assert.False(t, signals.NavigationChanged)
}

func TestAnalyzeChangesIgnoresWhitespaceOnlyDiff(t *testing.T) {
	b := New("/tmp/evidence", "interaction-3")
	b.before = &snapshot{HTML: "<html><body><p>same</p></body></html>", URL: "https://example.com/a"}
	b.after = &snapshot{HTML: "<html><body><p>same</p></body></html>\n", URL: "https://example.com/a"}

	signals := b.AnalyzeChanges("https://example.com/a", "https://example.com/a", nil)

	assert.False(t, signals.MeaningfulDOMChange)
}

func TestAnalyzeChangesDetectsFeedback(t *testing.T) {
	b := New("/tmp/evidence", "interaction-4")
	b.before = &snapshot{HTML: "<html></html>", URL: "https://example.com/a"}
	b.after = &snapshot{
		HTML: "<html></html>",
		URL:  "https://example.com/a",
		Feedback: []feedbackRecord{
			{Selector: `[role="alert"]`, Text: "This field is required", Visible: true},
		},
	}

	signals := b.AnalyzeChanges("https://example.com/a", "https://example.com/a", nil)

	assert.True(t, signals.FeedbackSeen)
	assert.True(t, signals.MeaningfulUIChange)
}

func TestGetSummaryReflectsRecordedConsoleCount(t *testing.T) {
	b := New("/tmp/evidence", "interaction-5")
	b.console = []ConsoleEntry{{Level: "error", Text: "boom"}}

	summary := b.GetSummary()

	assert.Equal(t, 1, summary.ConsoleCount)
	assert.Equal(t, "interaction-5", summary.InteractionID)
}

func TestCorrelateNetworkReportsActivity(t *testing.T) {
	b := New("/tmp/evidence", "interaction-6")
	assert.False(t, b.CorrelateNetwork())

	b.network["req-1"] = &NetworkEntry{Method: "GET", URL: "https://example.com/api"}
	assert.True(t, b.CorrelateNetwork())
}
