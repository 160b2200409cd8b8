// Package resolver resolves user-typed free text against the canonical
// supplier and classification-code values of the structured store.
package resolver

import (
	"context"
	"sort"
	"strings"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"

	"trade-assistant/internal/common/logger"
	"trade-assistant/internal/common/metrics"
	"trade-assistant/internal/models"
)

const (
	// containmentThreshold is the partial-ratio score treated as a confident
	// match; clearing it short-circuits the weighted search entirely.
	containmentThreshold = 90

	// wratioThreshold is the minimum weighted-ratio score kept on the broad
	// search path.
	wratioThreshold = 80

	// topN caps the broad search path's candidate list.
	topN = 5
)

// Source lists the canonical values fuzzy resolution matches against.
type Source interface {
	DistinctSuppliers(ctx context.Context) ([]string, error)
	DistinctCodes(ctx context.Context) ([]string, error)
}

// Resolver matches user fragments to canonical store values.
type Resolver struct {
	source Source
	logger logger.Logger
}

func New(source Source, log logger.Logger) *Resolver {
	return &Resolver{
		source: source,
		logger: log.WithFields(map[string]interface{}{"component": "resolver"}),
	}
}

// ResolveSupplier matches a supplier-name fragment against the canonical
// supplier set.
func (r *Resolver) ResolveSupplier(ctx context.Context, fragment string) (models.EntityCandidateSet, error) {
	values, err := r.source.DistinctSuppliers(ctx)
	if err != nil {
		return models.EntityCandidateSet{}, err
	}
	set := resolve(fragment, values)
	metrics.ResolverCandidates.WithLabelValues("supplier").Observe(float64(len(set.Candidates)))

	r.logger.Debug("supplier resolution", map[string]interface{}{
		"fragment":   fragment,
		"candidates": len(set.Candidates),
	})
	return set, nil
}

// ResolveCode matches a classification-code fragment against the canonical
// code set by literal substring containment: case-sensitive, unbounded.
// Codes are few and regular, so the asymmetry with supplier matching is
// deliberate.
func (r *Resolver) ResolveCode(ctx context.Context, fragment string) (models.EntityCandidateSet, error) {
	values, err := r.source.DistinctCodes(ctx)
	if err != nil {
		return models.EntityCandidateSet{}, err
	}

	fragment = strings.TrimSpace(fragment)
	var matches []string
	if fragment != "" {
		for _, v := range values {
			if strings.Contains(v, fragment) {
				matches = append(matches, v)
			}
		}
	}
	set := models.NewEntityCandidateSet(fragment, matches)
	metrics.ResolverCandidates.WithLabelValues("code").Observe(float64(len(set.Candidates)))

	r.logger.Debug("code resolution", map[string]interface{}{
		"fragment":   fragment,
		"candidates": len(set.Candidates),
	})
	return set, nil
}

type scored struct {
	value string
	score int
}

// resolve implements the two-stage match: a partial-containment shortcut at
// score >= 90, falling back to weighted-ratio top-5 at score >= 80.
// Comparison uppercases both sides; results keep the stored casing.
func resolve(fragment string, values []string) models.EntityCandidateSet {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" || len(values) == 0 {
		return models.NewEntityCandidateSet(fragment, nil)
	}
	needle := strings.ToUpper(fragment)

	var confident []string
	for _, v := range values {
		if fuzzy.PartialRatio(needle, strings.ToUpper(strings.TrimSpace(v))) >= containmentThreshold {
			confident = append(confident, v)
		}
	}
	if len(confident) > 0 {
		return models.NewEntityCandidateSet(fragment, confident)
	}

	ranked := make([]scored, 0, len(values))
	for _, v := range values {
		s := fuzzy.WRatio(needle, strings.ToUpper(strings.TrimSpace(v)))
		if s >= wratioThreshold {
			ranked = append(ranked, scored{value: v, score: s})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if len(ranked) > topN {
		ranked = ranked[:topN]
	}

	candidates := make([]string, 0, len(ranked))
	for _, c := range ranked {
		candidates = append(candidates, c.value)
	}
	return models.NewEntityCandidateSet(fragment, candidates)
}
