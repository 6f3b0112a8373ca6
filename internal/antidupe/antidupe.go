// Package antidupe implements the anti-duplicate problem index: given a
// set of players, a difficulty, and a problem type, it returns a
// problem none of them have played within the TTL window and whose
// reuse count is below the configured maximum, generating a fresh one
// through problemgen when no cached candidate qualifies.
//
// The recency cache is an expirable LRU with hits/misses tracked via
// atomic counters and TTL-bounded entries. The single-writer constraint
// on problem generation uses golang.org/x/sync/singleflight to collapse
// concurrent generations for the same exclusion set onto one in-flight
// call.
package antidupe

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"codeduel/internal/metrics"
	"codeduel/internal/models"
	"codeduel/internal/problemgen"
	"codeduel/internal/repository"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// Config holds the anti-duplicate tunables.
type Config struct {
	TTL      time.Duration // PROBLEM_TTL_DAYS
	MaxReuse int           // PROBLEM_MAX_REUSE
}

// DefaultConfig returns the stated default tunables.
func DefaultConfig() Config {
	return Config{TTL: 30 * 24 * time.Hour, MaxReuse: 3}
}

// recentEntry caches, per user, the fingerprints they've solved or played
// recently so repeated lookups avoid round-tripping the history table.
// names carries the readable title/function-name for each fingerprint,
// for the generator's exclusion prompt.
type recentEntry struct {
	fingerprints map[string]struct{}
	names        map[string]string
	cachedAt     time.Time
}

// Index is the anti-duplicate problem selector.
type Index struct {
	repo      *repository.Repository
	generator *problemgen.Generator
	cfg       Config

	recent *lru.LRU[uuid.UUID, *recentEntry]
	group  singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
}

// New constructs an Index backed by repo for history lookups and
// generator for cache-miss fallthrough.
func New(repo *repository.Repository, generator *problemgen.Generator, cfg Config) *Index {
	return &Index{
		repo:      repo,
		generator: generator,
		cfg:       cfg,
		recent:    lru.NewLRU[uuid.UUID, *recentEntry](10_000, nil, cfg.TTL),
	}
}

// Select returns a problem that satisfies the anti-duplicate constraint
// for every user in players, at the given difficulty/type.
func (idx *Index) Select(ctx context.Context, players []uuid.UUID, difficulty models.Difficulty, problemType models.ProblemType) (*models.Problem, error) {
	excluded, excludedNames, err := idx.excludedFingerprints(ctx, players)
	if err != nil {
		return nil, fmt.Errorf("antidupe: resolve history: %w", err)
	}

	candidates, err := idx.repo.CandidateProblems(ctx, difficulty, problemType, idx.cfg.MaxReuse, 50)
	if err != nil {
		return nil, fmt.Errorf("antidupe: candidate lookup: %w", err)
	}

	for _, c := range candidates {
		if _, seen := excluded[c.Fingerprint]; !seen {
			idx.hits.Add(1)
			metrics.ProblemCacheLookups.WithLabelValues("hit").Inc()
			return &c, nil
		}
	}

	idx.misses.Add(1)
	metrics.ProblemCacheLookups.WithLabelValues("miss").Inc()
	return idx.generate(ctx, difficulty, problemType, excludedNames)
}

// generate asks problemgen for a fresh problem, serialized per
// (difficulty, problemType, exclusion-set) via singleflight so
// concurrent duel creations for the same shape don't pay for redundant
// LLM calls.
func (idx *Index) generate(ctx context.Context, difficulty models.Difficulty, problemType models.ProblemType, excludedNames []string) (*models.Problem, error) {
	key := singleflightKey(difficulty, problemType, excludedNames)

	v, err, _ := idx.group.Do(key, func() (interface{}, error) {
		problem, genErr := idx.generator.Generate(ctx, problemgen.Request{
			Difficulty:  difficulty,
			ProblemType: problemType,
			Exclusions:  excludedNames,
		})
		if genErr != nil {
			return nil, genErr
		}

		if existing, lookupErr := idx.repo.GetProblemByFingerprint(ctx, problem.Fingerprint); lookupErr == nil {
			return existing, nil
		}

		problem.ID = uuid.New()
		if createErr := idx.repo.CreateProblem(ctx, problem); createErr != nil {
			return nil, fmt.Errorf("persist generated problem: %w", createErr)
		}
		return problem, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.Problem), nil
}

// excludedFingerprints returns the union of fingerprints that any of
// players has seen within the TTL window, plus the title/function-name
// strings behind them for the generator's exclusion prompt.
func (idx *Index) excludedFingerprints(ctx context.Context, players []uuid.UUID) (map[string]struct{}, []string, error) {
	fingerprints := make(map[string]struct{})
	names := make(map[string]struct{})

	for _, userRef := range players {
		entry, err := idx.recentFor(ctx, userRef)
		if err != nil {
			return nil, nil, err
		}
		for fp := range entry.fingerprints {
			fingerprints[fp] = struct{}{}
		}
		for _, name := range entry.names {
			if name != "" {
				names[name] = struct{}{}
			}
		}
	}

	excludedNames := make([]string, 0, len(names))
	for name := range names {
		excludedNames = append(excludedNames, name)
	}
	sort.Strings(excludedNames)
	return fingerprints, excludedNames, nil
}

func (idx *Index) recentFor(ctx context.Context, userRef uuid.UUID) (*recentEntry, error) {
	if cached, ok := idx.recent.Get(userRef); ok {
		return cached, nil
	}

	rows, err := idx.repo.RecentHistoryWithProblems(ctx, userRef, time.Now().Add(-idx.cfg.TTL))
	if err != nil {
		return nil, err
	}

	fingerprints := make(map[string]struct{}, len(rows))
	names := make(map[string]string, len(rows))
	for _, r := range rows {
		fingerprints[r.Fingerprint] = struct{}{}
		if r.Title != "" {
			names[r.Fingerprint] = r.Title
		} else {
			names[r.Fingerprint] = r.FunctionName
		}
	}
	entry := &recentEntry{fingerprints: fingerprints, names: names, cachedAt: time.Now()}
	idx.recent.Add(userRef, entry)
	return entry, nil
}

// InvalidateUser drops a user's cached recency set, e.g. right after a
// duel completion records new history for them.
func (idx *Index) InvalidateUser(userRef uuid.UUID) {
	idx.recent.Remove(userRef)
}

func singleflightKey(difficulty models.Difficulty, problemType models.ProblemType, excludedNames []string) string {
	return fmt.Sprintf("%s|%s|%s", difficulty, problemType, strings.Join(excludedNames, ","))
}
