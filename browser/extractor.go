package browser

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Extractor turns a LocatorMap into records aligned by element position.
type Extractor struct {
	logger *zap.Logger
}

// NewExtractor creates an extractor.
func NewExtractor(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{logger: logger.With(zap.String("component", "extractor"))}
}

// Extract counts the matches of the reference locator (the first entry) and
// builds that many records. For record i every field is re-queried and takes
// the trimmed text of its i-th match, or "" when the field has fewer matches.
// A reference with no matches, or an empty map, yields an empty slice.
func (e *Extractor) Extract(ctx context.Context, s *Session, locators LocatorMap) ([]Record, error) {
	if err := locators.Validate(); err != nil {
		return nil, err
	}
	records := make([]Record, 0)
	if len(locators) == 0 {
		return records, nil
	}

	page := s.Page()
	ref := locators[0]
	n, err := page.QueryAllCount(ctx, ref.Selector)
	if err != nil {
		return nil, &ExtractionError{Field: ref.Field, Selector: ref.Selector, Err: err}
	}

	for i := 0; i < n; i++ {
		rec := make(Record, len(locators))
		for _, loc := range locators {
			// 每个字段逐条重新查询，容忍字段之间的 DOM 变化
			texts, err := page.QueryAllText(ctx, loc.Selector)
			if err != nil {
				return nil, &ExtractionError{Field: loc.Field, Selector: loc.Selector, Err: err}
			}
			if i < len(texts) {
				rec[loc.Field] = strings.TrimSpace(texts[i])
			} else {
				rec[loc.Field] = ""
			}
		}
		records = append(records, rec)
	}

	e.logger.Debug("extraction complete",
		zap.String("session_id", s.ID()),
		zap.String("reference", ref.Selector),
		zap.Int("records", len(records)),
	)
	return records, nil
}
