// Package search scores free-text and image-derived queries against the
// approved advertisement pool using keyword-overlap similarity.
package search

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/zakisalem/souq-bot/internal/arabic"
	"github.com/zakisalem/souq-bot/internal/models"
)

const (
	// Minimum similarity to keep a candidate, per search mode.
	textThreshold  = 0.2
	imageThreshold = 0.3

	// Fixed score bonuses, both capped at a total of 1.0.
	phraseBonus   = 0.3
	categoryBonus = 0.2

	// Similarity above which a text match counts as exact.
	exactCutoff = 0.8

	// DefaultLimit is the buyer-facing result cap; MaxLimit bounds
	// programmatic callers.
	DefaultLimit = 5
	MaxLimit     = 50
)

// AdSource supplies the candidate set: approved advertisements passing
// the hard category/location filters.
type AdSource interface {
	ListApproved(ctx context.Context, filters models.AdFilters) ([]models.Ad, error)
}

type Engine struct {
	ads       AdSource
	processor *arabic.Processor
	logger    *zap.Logger
}

func NewEngine(ads AdSource, processor *arabic.Processor, logger *zap.Logger) *Engine {
	return &Engine{
		ads:       ads,
		processor: processor,
		logger:    logger,
	}
}

// Filters narrows a search beyond keyword similarity. Category and
// Location are hard filters applied at the store; the category inferred
// from the query text stays a score bonus, never a filter. A zero
// PriceMax means unbounded; ads with no price pass the price filter
// regardless.
type Filters struct {
	Category string
	PriceMin float64
	PriceMax float64
	Location string
}

// Search scores the query against the approved ads passing the hard
// filters and returns the top matches ordered by similarity, most
// recent first on ties.
func (e *Engine) Search(ctx context.Context, query string, f Filters, limit int) ([]models.Match, error) {
	keywords := e.processor.ExtractKeywords(query)
	if len(keywords) == 0 {
		return nil, nil
	}
	queryCategory := e.processor.DetectCategory(query)

	candidates, err := e.ads.ListApproved(ctx, models.AdFilters{
		Category: f.Category,
		Location: f.Location,
	})
	if err != nil {
		return nil, fmt.Errorf("listing approved ads: %w", err)
	}

	matches := make([]models.Match, 0, len(candidates))
	for _, ad := range candidates {
		if !priceAllowed(ad.Price, f.PriceMin, f.PriceMax) {
			continue
		}
		similarity := e.score(keywords, ad, queryCategory)
		if similarity <= textThreshold {
			continue
		}
		matchType := models.MatchPartial
		if similarity > exactCutoff {
			matchType = models.MatchExact
		}
		matches = append(matches, toMatch(ad, similarity, matchType))
	}

	rank(matches)
	return truncate(matches, limit), nil
}

// SearchByImage matches an image-derived product description against the
// approved pool. The threshold is stricter than the text path and the
// category bonus is keyword-fuzzy, since a vision description rarely
// names the category verbatim.
func (e *Engine) SearchByImage(ctx context.Context, description string, limit int) ([]models.Match, error) {
	keywords := e.processor.ExtractKeywords(description)
	if len(keywords) == 0 {
		return nil, nil
	}

	candidates, err := e.ads.ListApproved(ctx, models.AdFilters{})
	if err != nil {
		return nil, fmt.Errorf("listing approved ads: %w", err)
	}

	matches := make([]models.Match, 0, len(candidates))
	for _, ad := range candidates {
		similarity := e.overlap(keywords, ad)
		if ad.Category != "" && e.processor.CategoryKeywordMatch(keywords, ad.Category) {
			similarity = cap1(similarity + categoryBonus)
		}
		if similarity <= imageThreshold {
			continue
		}
		matches = append(matches, toMatch(ad, similarity, models.MatchImage))
	}

	rank(matches)
	return truncate(matches, limit), nil
}

// overlap computes |query ∩ candidate| / |query| over the candidate's
// text and category. An empty query scores zero, never a division error.
func (e *Engine) overlap(keywords []string, ad models.Ad) float64 {
	if len(keywords) == 0 {
		return 0
	}
	candidateText := strings.ToLower(arabic.Normalize(ad.EnhancedText + " " + ad.Category))
	matched := 0
	for _, kw := range keywords {
		if strings.Contains(candidateText, strings.ToLower(kw)) {
			matched++
		}
	}
	return float64(matched) / float64(len(keywords))
}

func (e *Engine) score(keywords []string, ad models.Ad, queryCategory string) float64 {
	similarity := e.overlap(keywords, ad)

	candidateText := strings.ToLower(arabic.Normalize(ad.EnhancedText + " " + ad.Category))
	phrase := strings.ToLower(strings.Join(keywords, " "))
	if strings.Contains(candidateText, phrase) {
		similarity = cap1(similarity + phraseBonus)
	}
	if queryCategory != "" && ad.Category == queryCategory {
		similarity = cap1(similarity + categoryBonus)
	}
	return similarity
}

func priceAllowed(price *float64, min, max float64) bool {
	if min == 0 && max == 0 {
		return true
	}
	if price == nil {
		// Unknown prices are never excluded by a price filter.
		return true
	}
	if *price < min {
		return false
	}
	if max > 0 && *price > max {
		return false
	}
	return true
}

func rank(matches []models.Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
}

func truncate(matches []models.Match, limit int) []models.Match {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

func toMatch(ad models.Ad, similarity float64, matchType models.MatchType) models.Match {
	return models.Match{
		AdID:       ad.ID,
		Text:       ad.EnhancedText,
		Price:      ad.Price,
		Location:   ad.Location,
		Contact:    ad.ContactInfo,
		Link:       ad.Link,
		Similarity: similarity,
		MatchType:  matchType,
		CreatedAt:  ad.CreatedAt,
	}
}

func cap1(v float64) float64 {
	if v > 1.0 {
		return 1.0
	}
	return v
}
