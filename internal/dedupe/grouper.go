package dedupe

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"travel-backend/internal/apperr"
)

// Candidate is one record eligible for duplicate detection.
type Candidate struct {
	ID string
	// Scope is the organizational partition; records only match within one scope.
	Scope string
	// Key is compared fuzzily with Similarity.
	Key string
	// ExactKey is an optional structured identifier. Two non-empty equal
	// ExactKeys match regardless of Key similarity.
	ExactKey string
	Active   bool
}

// Match is a candidate paired with a group's primary.
type Match struct {
	Candidate     Candidate
	Similarity    float64
	ExactKeyMatch bool
}

// Group is a primary plus the candidates that matched it, best score first.
type Group struct {
	Primary Candidate
	Matches []Match
}

// Options controls a scan.
type Options struct {
	MinSimilarity float64
	// Scopes restricts the scan. Nil means every scope.
	Scopes []string
	// MaxScopeSize fails the scan when one scope holds more candidates. Zero disables.
	MaxScopeSize int
	// Workers bounds how many scopes are scanned at once.
	Workers int
}

// FindDuplicates partitions candidates into duplicate groups.
//
// Inactive and out-of-scope candidates are dropped and the rest are ordered by
// scope, key and id so repeated scans over the same input give the same output.
// Each scope is scanned independently with its own claimed set: a candidate
// that lands in a group is never reconsidered, as primary or as match.
func FindDuplicates(ctx context.Context, candidates []Candidate, opts Options) ([]Group, error) {
	if opts.MinSimilarity < 0 || opts.MinSimilarity > 1 {
		return nil, apperr.Validation("min_similarity must be between 0 and 1")
	}

	byScope := partition(candidates, opts.Scopes)
	scopes := make([]string, 0, len(byScope))
	for scope, members := range byScope {
		if opts.MaxScopeSize > 0 && len(members) > opts.MaxScopeSize {
			return nil, apperr.Validation(
				"scope %s has %d candidates, more than the %d a single scan allows; narrow the scope",
				scope, len(members), opts.MaxScopeSize)
		}
		scopes = append(scopes, scope)
	}
	sort.Strings(scopes)

	results := make([][]Group, len(scopes))
	g, ctx := errgroup.WithContext(ctx)
	if opts.Workers > 0 {
		g.SetLimit(opts.Workers)
	}
	for i, scope := range scopes {
		i, members := i, byScope[scope]
		g.Go(func() error {
			groups, err := scanScope(ctx, members, opts.MinSimilarity)
			if err != nil {
				return err
			}
			results[i] = groups
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var groups []Group
	for _, scoped := range results {
		groups = append(groups, scoped...)
	}
	return groups, nil
}

func partition(candidates []Candidate, scopes []string) map[string][]Candidate {
	var allowed map[string]bool
	if scopes != nil {
		allowed = make(map[string]bool, len(scopes))
		for _, s := range scopes {
			allowed[s] = true
		}
	}

	byScope := make(map[string][]Candidate)
	for _, c := range candidates {
		if !c.Active {
			continue
		}
		if allowed != nil && !allowed[c.Scope] {
			continue
		}
		byScope[c.Scope] = append(byScope[c.Scope], c)
	}
	for _, members := range byScope {
		sort.SliceStable(members, func(i, j int) bool {
			ki, kj := normalize(members[i].Key), normalize(members[j].Key)
			if ki != kj {
				return ki < kj
			}
			return members[i].ID < members[j].ID
		})
	}
	return byScope
}

// scanScope runs the O(n^2) pass over one scope's ordered candidates.
func scanScope(ctx context.Context, members []Candidate, minSimilarity float64) ([]Group, error) {
	claimed := make(map[string]bool, len(members))
	var groups []Group

	for i, primary := range members {
		if claimed[primary.ID] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var matches []Match
		for j, other := range members {
			if i == j || other.ID == primary.ID || claimed[other.ID] {
				continue
			}
			score := Similarity(primary.Key, other.Key)
			exact := exactKeyEqual(primary.ExactKey, other.ExactKey)
			if score >= minSimilarity || exact {
				matches = append(matches, Match{
					Candidate:     other,
					Similarity:    score,
					ExactKeyMatch: exact,
				})
			}
		}
		if len(matches) == 0 {
			continue
		}

		sort.SliceStable(matches, func(a, b int) bool {
			return matches[a].Similarity > matches[b].Similarity
		})
		claimed[primary.ID] = true
		for _, m := range matches {
			claimed[m.Candidate.ID] = true
		}
		groups = append(groups, Group{Primary: primary, Matches: matches})
	}
	return groups, nil
}

func exactKeyEqual(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	return a != "" && a == b
}
