package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"feedbackbot/internal/domain"
	"feedbackbot/internal/integrations/llm"
)

// Classifier tags every sampled item with exactly one category in a single
// model call.
type Classifier struct {
	llm   llm.Completer
	rules []glossaryRule
	guide string
	log   *zap.Logger
}

func NewClassifier(completer llm.Completer, glossary *Glossary, guide string, log *zap.Logger) (*Classifier, error) {
	rules, err := glossary.rules()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Classifier{llm: completer, rules: rules, guide: guide, log: log}, nil
}

type classifiedItem struct {
	ID       int    `json:"id"`
	Category string `json:"category"`
}

// Classify partitions items into the three buckets. Bucket contents keep the
// input order. An empty sample makes no model call.
func (c *Classifier) Classify(ctx context.Context, items []domain.FeedbackItem) (domain.ClassifiedBatch, domain.Usage, error) {
	if len(items) == 0 {
		return domain.ClassifiedBatch{}, domain.Usage{}, nil
	}

	systemPrompt, userPrompt := buildClassifierPrompts(items, c.guide)
	resp, err := c.llm.Complete(ctx, llm.Request{Stage: string(StageClassify), System: systemPrompt, User: userPrompt})
	if err != nil {
		return domain.ClassifiedBatch{}, resp.Usage, fmt.Errorf("classify %d items: %w", len(items), err)
	}

	categories, err := parseClassifiedResponse(resp.Text, len(items))
	if err != nil {
		return domain.ClassifiedBatch{}, resp.Usage, err
	}
	if changed := applyGlossaryOverrides(items, categories, c.rules); changed > 0 {
		c.log.Info("glossary overrides applied", zap.Int("items", changed))
	}

	var batch domain.ClassifiedBatch
	for i, item := range items {
		batch.Add(categories[i], item)
	}
	fields := []zap.Field{zap.Int("items", len(items))}
	for _, category := range domain.Categories {
		fields = append(fields, zap.Int(string(category), len(batch.Bucket(category))))
	}
	c.log.Info("classification complete", fields...)
	return batch, resp.Usage, nil
}

// parseClassifiedResponse returns one category per input position. Ids must
// cover 1..n exactly once.
func parseClassifiedResponse(responseText string, n int) ([]domain.FeedbackCategory, error) {
	responseText = llm.StripCodeFence(responseText)

	var classified []classifiedItem
	if err := json.Unmarshal([]byte(responseText), &classified); err != nil {
		return nil, fmt.Errorf("parsing classification response: %w (response: %s)", err, truncateForError(responseText))
	}

	categories := make([]domain.FeedbackCategory, n)
	for _, item := range classified {
		if item.ID < 1 || item.ID > n {
			return nil, fmt.Errorf("classification id %d out of range 1..%d", item.ID, n)
		}
		if categories[item.ID-1] != "" {
			return nil, fmt.Errorf("classification id %d appears more than once", item.ID)
		}
		category, ok := domain.ParseCategory(item.Category)
		if !ok {
			return nil, fmt.Errorf("classification id %d: unknown category %q", item.ID, item.Category)
		}
		categories[item.ID-1] = category
	}

	var missing []int
	for i, category := range categories {
		if category == "" {
			missing = append(missing, i+1)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("classification is missing %d of %d ids: %v", len(missing), n, truncateIDs(missing))
	}
	return categories, nil
}

func truncateIDs(ids []int) []int {
	if len(ids) > 10 {
		return ids[:10]
	}
	return ids
}

func truncateForError(s string) string {
	const max = 300
	if len(s) > max {
		return cutAtRune(s, max) + "..."
	}
	return s
}
