package dedupe

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travel-backend/internal/apperr"
)

func cand(id, scope, key, exact string) Candidate {
	return Candidate{ID: id, Scope: scope, Key: key, ExactKey: exact, Active: true}
}

func TestFindDuplicatesExactKeyForcesInclusion(t *testing.T) {
	candidates := []Candidate{
		cand("c", "S", "Jane Doe", "E9"),
		cand("b", "S", "Jon Smith", "E1"),
		cand("a", "S", "John Smith", "E1"),
	}

	groups, err := FindDuplicates(context.Background(), candidates, Options{MinSimilarity: 0.7})
	require.NoError(t, err)
	require.Len(t, groups, 1)

	// "john smith" sorts before "jon smith"
	assert.Equal(t, "a", groups[0].Primary.ID)
	require.Len(t, groups[0].Matches, 1)
	assert.Equal(t, "b", groups[0].Matches[0].Candidate.ID)
	assert.True(t, groups[0].Matches[0].ExactKeyMatch)

	// Exact key alone is enough even with a threshold no text could reach.
	groups, err = FindDuplicates(context.Background(), candidates, Options{MinSimilarity: 1})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "b", groups[0].Matches[0].Candidate.ID)
	assert.Less(t, groups[0].Matches[0].Similarity, 1.0)
}

func TestFindDuplicatesEmptyExactKeysDoNotMatch(t *testing.T) {
	candidates := []Candidate{
		cand("a", "S", "Alice Brown", ""),
		cand("b", "S", "Zed Quinn", "  "),
	}
	groups, err := FindDuplicates(context.Background(), candidates, Options{MinSimilarity: 0.7})
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestFindDuplicatesNeverCrossesScopes(t *testing.T) {
	candidates := []Candidate{
		cand("a", "S1", "John Smith", "E1"),
		cand("b", "S2", "John Smith", "E1"),
	}
	groups, err := FindDuplicates(context.Background(), candidates, Options{MinSimilarity: 0.7})
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestFindDuplicatesScopeFilterAndInactive(t *testing.T) {
	candidates := []Candidate{
		cand("a", "S1", "John Smith", ""),
		cand("b", "S1", "John Smith", ""),
		cand("c", "S2", "Mary Major", ""),
		cand("d", "S2", "Mary Major", ""),
		{ID: "e", Scope: "S1", Key: "John Smith"},
	}
	groups, err := FindDuplicates(context.Background(), candidates, Options{MinSimilarity: 0.7, Scopes: []string{"S2"}})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "c", groups[0].Primary.ID)

	groups, err = FindDuplicates(context.Background(), candidates, Options{MinSimilarity: 0.7})
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "S1", groups[0].Primary.Scope)
	require.Len(t, groups[0].Matches, 1, "inactive record must not be grouped")
	assert.Equal(t, "b", groups[0].Matches[0].Candidate.ID)
}

func TestFindDuplicatesMatchesSortedByScore(t *testing.T) {
	candidates := []Candidate{
		cand("p", "S", "Anna Karenina", ""),
		cand("m1", "S", "Anna Karenin", ""),
		cand("m2", "S", "Ana Karenina", ""),
		cand("m3", "S", "Anna Karenina", ""),
	}
	groups, err := FindDuplicates(context.Background(), candidates, Options{MinSimilarity: 0.7})
	require.NoError(t, err)
	require.Len(t, groups, 1)

	// "ana karenina" sorts first and becomes the primary
	assert.Equal(t, "m2", groups[0].Primary.ID)

	matches := groups[0].Matches
	require.Len(t, matches, 3)
	for i := 1; i < len(matches); i++ {
		assert.GreaterOrEqual(t, matches[i-1].Similarity, matches[i].Similarity)
	}
	// equal scores keep scan order
	assert.Equal(t, []string{"m3", "p", "m1"}, []string{
		matches[0].Candidate.ID, matches[1].Candidate.ID, matches[2].Candidate.ID,
	})
}

func TestFindDuplicatesEveryRecordInAtMostOneGroup(t *testing.T) {
	var candidates []Candidate
	for i := 0; i < 30; i++ {
		scope := fmt.Sprintf("S%d", i%3)
		candidates = append(candidates, cand(fmt.Sprintf("id-%02d", i), scope, fmt.Sprintf("Traveller %d", i%5), fmt.Sprintf("E%d", i%7)))
	}

	groups, err := FindDuplicates(context.Background(), candidates, Options{MinSimilarity: 0.8, Workers: 2})
	require.NoError(t, err)
	require.NotEmpty(t, groups)

	seen := map[string]int{}
	for _, g := range groups {
		seen[g.Primary.ID]++
		for _, m := range g.Matches {
			seen[m.Candidate.ID]++
			assert.Equal(t, g.Primary.Scope, m.Candidate.Scope)
			assert.True(t, m.Similarity >= 0.8 || m.ExactKeyMatch)
		}
	}
	for id, n := range seen {
		assert.Equal(t, 1, n, "record %s grouped %d times", id, n)
	}

	again, err := FindDuplicates(context.Background(), candidates, Options{MinSimilarity: 0.8, Workers: 3})
	require.NoError(t, err)
	assert.Equal(t, groups, again, "scan must be deterministic")
}

func TestFindDuplicatesRejectsBadThreshold(t *testing.T) {
	for _, v := range []float64{-0.1, 1.01} {
		_, err := FindDuplicates(context.Background(), nil, Options{MinSimilarity: v})
		assert.True(t, apperr.Is(err, apperr.KindValidation))
	}
}

func TestFindDuplicatesScopeCeilingFailsInsteadOfTruncating(t *testing.T) {
	candidates := []Candidate{
		cand("a", "S", "John Smith", ""),
		cand("b", "S", "John Smith", ""),
		cand("c", "S", "John Smith", ""),
	}
	_, err := FindDuplicates(context.Background(), candidates, Options{MinSimilarity: 0.7, MaxScopeSize: 2})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	groups, err := FindDuplicates(context.Background(), candidates, Options{MinSimilarity: 0.7, MaxScopeSize: 3})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Len(t, groups[0].Matches, 2)
}

func TestFindDuplicatesHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := FindDuplicates(ctx, []Candidate{cand("a", "S", "x", ""), cand("b", "S", "x", "")}, Options{MinSimilarity: 0.7})
	assert.ErrorIs(t, err, context.Canceled)
}
