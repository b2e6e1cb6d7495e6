package planner

import (
	"math/rand/v2"
	"slices"
	"sort"
	"strings"

	"github.com/khoii1/DA-Fitness/internal/catalog"
)

const (
	// MaxOccurrencePerMeal is the intended cap on how often one meal appears in a
	// plan. It is reported through OverCap but not enforced by PickDayMeals.
	MaxOccurrencePerMeal = 2

	reshuffleAttempts = 50
	scanOuterLimit    = 20
	scanWindow        = 10
)

// Session carries the state of one materialization run: the RNG, the set of
// daily meal combinations already used and per-meal occurrence counts.
// A Session is not safe for concurrent use.
type Session struct {
	rng         *rand.Rand
	used        map[string]struct{}
	occurrences map[string]int
}

type SessionOption func(*Session)

// WithSeed makes the session deterministic.
func WithSeed(seed1, seed2 uint64) SessionOption {
	return func(s *Session) {
		s.rng = rand.New(rand.NewPCG(seed1, seed2))
	}
}

func NewSession(opts ...SessionOption) *Session {
	s := &Session{
		rng:         rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		used:        make(map[string]struct{}),
		occurrences: make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Seed loads combinations and occurrence counts from already scheduled meal
// collections. Groups with fewer than MealsPerDay meals contribute counts only.
func (s *Session) Seed(groups map[CollectionRef][]string) {
	for _, ids := range groups {
		for _, id := range ids {
			s.occurrences[id]++
		}
		if len(ids) >= MealsPerDay {
			s.used[combinationKey(ids)] = struct{}{}
		}
	}
}

// OverCap reports whether a meal has reached MaxOccurrencePerMeal in this session.
func (s *Session) OverCap(mealID string) bool {
	return s.occurrences[mealID] >= MaxOccurrencePerMeal
}

func (s *Session) Occurrences(mealID string) int {
	return s.occurrences[mealID]
}

func combinationKey(ids []string) string {
	sorted := slices.Clone(ids)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

// pickRandom returns between lo and hi distinct ids from pool.
func (s *Session) pickRandom(pool []string, lo, hi int) []string {
	unique := make([]string, 0, len(pool))
	seen := make(map[string]struct{}, len(pool))
	for _, id := range pool {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	n := lo + s.rng.IntN(hi-lo+1)
	if len(unique) <= n {
		s.rng.Shuffle(len(unique), func(i, j int) { unique[i], unique[j] = unique[j], unique[i] })
		return unique
	}
	out := make([]string, n)
	for i, p := range s.rng.Perm(len(unique))[:n] {
		out[i] = unique[p]
	}
	return out
}

// PickDayExercises draws three or four distinct exercises for one day.
func (s *Session) PickDayExercises(pool []string) []string {
	return s.pickRandom(pool, 3, 4)
}

// PickRandomMeals draws three or four distinct meals with no ranking or uniqueness.
func (s *Session) PickRandomMeals(meals []catalog.Meal) []string {
	ids := make([]string, len(meals))
	for i, m := range meals {
		ids[i] = m.ID
	}
	return s.pickRandom(ids, 3, 4)
}

// DayMeals is the outcome of PickDayMeals. Unique is false when every
// combination was already taken and a duplicate was accepted. UnderFilled
// is set when fewer than MealsPerDay candidates exist.
type DayMeals struct {
	IDs         []string
	Key         string
	Unique      bool
	UnderFilled bool
}

// PickDayMeals chooses MealsPerDay meals for one day, preferring a
// combination not yet used in this session. It never fails: when no unused
// combination is found it returns a duplicate.
func (s *Session) PickDayMeals(meals []catalog.Meal, targetIntake int, avgMET float64) DayMeals {
	ids := s.rankMeals(dedupeMeals(meals), TargetPerMeal(targetIntake), avgMET >= HighIntensityMET)
	n := len(ids)

	if n < MealsPerDay {
		return s.accept(ids, true)
	}

	for i := 0; i < min(n-2, scanOuterLimit); i++ {
		for j := i + 1; j < min(n-1, i+scanWindow); j++ {
			for k := j + 1; k < min(n, j+scanWindow); k++ {
				combo := []string{ids[i], ids[j], ids[k]}
				if !s.isUsed(combo) {
					return s.accept(combo, false)
				}
			}
		}
	}

	shuffled := slices.Clone(ids)
	for range reshuffleAttempts {
		s.rng.Shuffle(n, func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		combo := slices.Clone(shuffled[:MealsPerDay])
		if !s.isUsed(combo) {
			return s.accept(combo, false)
		}
	}

	return s.accept(slices.Clone(ids[:MealsPerDay]), false)
}

func (s *Session) isUsed(ids []string) bool {
	_, ok := s.used[combinationKey(ids)]
	return ok
}

func (s *Session) accept(ids []string, underFilled bool) DayMeals {
	key := combinationKey(ids)
	_, taken := s.used[key]
	s.used[key] = struct{}{}
	for _, id := range ids {
		s.occurrences[id]++
	}
	return DayMeals{IDs: ids, Key: key, Unique: !taken, UnderFilled: underFilled}
}

// rankMeals orders meals by calorie score, least-used first on ties, then
// shuffles the head of the ranking so equally good days vary.
func (s *Session) rankMeals(meals []catalog.Meal, targetPerMeal int, highIntensity bool) []string {
	type ranked struct {
		id    string
		score int
		occ   int
	}
	items := make([]ranked, len(meals))
	for i, m := range meals {
		items[i] = ranked{id: m.ID, score: mealScore(m, targetPerMeal, highIntensity), occ: s.occurrences[m.ID]}
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].score != items[j].score {
			return items[i].score < items[j].score
		}
		return items[i].occ < items[j].occ
	})

	head := min(len(items), RankedPoolSize)
	s.rng.Shuffle(head, func(i, j int) { items[i], items[j] = items[j], items[i] })

	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.id
	}
	return ids
}
