package domain

import "strings"

// FeedbackItem is one customer comment. It carries no id or metadata.
type FeedbackItem string

// FeedbackCategory is the single tag the classifier assigns to an item.
type FeedbackCategory string

const (
	CategoryBugReport       FeedbackCategory = "bug_report"
	CategoryFeatureRequest  FeedbackCategory = "feature_request"
	CategoryGeneralFeedback FeedbackCategory = "general_feedback"
)

// Categories lists every category in bucket order.
var Categories = []FeedbackCategory{CategoryBugReport, CategoryFeatureRequest, CategoryGeneralFeedback}

// ParseCategory accepts the canonical tags plus a few common model
// spellings ("bug", "Feature Request", "general").
func ParseCategory(s string) (FeedbackCategory, bool) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	switch norm {
	case "bug_report", "bug", "bugs", "bug_reports":
		return CategoryBugReport, true
	case "feature_request", "feature", "features", "feature_requests":
		return CategoryFeatureRequest, true
	case "general_feedback", "general", "other":
		return CategoryGeneralFeedback, true
	}
	return "", false
}

// ClassifiedBatch partitions one sample into the three category buckets.
// Every sampled item appears in exactly one bucket.
type ClassifiedBatch struct {
	BugReports      []FeedbackItem
	FeatureRequests []FeedbackItem
	GeneralFeedback []FeedbackItem
}

func (b ClassifiedBatch) Len() int {
	return len(b.BugReports) + len(b.FeatureRequests) + len(b.GeneralFeedback)
}

func (b ClassifiedBatch) Bucket(c FeedbackCategory) []FeedbackItem {
	switch c {
	case CategoryBugReport:
		return b.BugReports
	case CategoryFeatureRequest:
		return b.FeatureRequests
	case CategoryGeneralFeedback:
		return b.GeneralFeedback
	}
	return nil
}

func (b *ClassifiedBatch) Add(c FeedbackCategory, item FeedbackItem) {
	switch c {
	case CategoryBugReport:
		b.BugReports = append(b.BugReports, item)
	case CategoryFeatureRequest:
		b.FeatureRequests = append(b.FeatureRequests, item)
	default:
		b.GeneralFeedback = append(b.GeneralFeedback, item)
	}
}
