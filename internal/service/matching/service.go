// Package matching selects candidate profiles for a caller.
package matching

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/oggyb/matchbot/internal/app"
	"github.com/oggyb/matchbot/internal/db"
	"github.com/oggyb/matchbot/internal/profile"
	"github.com/oggyb/matchbot/internal/repository"
)

// Criteria are the advanced search filters. Empty fields match anything;
// Gender may also be "any".
type Criteria struct {
	Gender string
	City   string
	Goal   string
}

// Service implements candidate selection on top of CandidateRepository.
//
// Every operation excludes the caller, banned users and incomplete profiles.
// Random, city and advanced search also skip users the caller already liked
// and honour the caller's seeking filter.
type Service struct {
	appCtx     *app.AppContext
	candidates *repository.CandidateRepository

	searchLimit int
	topLimit    int

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewService creates a matching service with a time-seeded random source.
func NewService(appCtx *app.AppContext) *Service {
	seed := uint64(time.Now().UnixNano())
	return NewServiceWithRand(appCtx, rand.New(rand.NewPCG(seed, seed>>1)))
}

// NewServiceWithRand injects the random source, so tests get repeatable picks.
func NewServiceWithRand(appCtx *app.AppContext, rnd *rand.Rand) *Service {
	return &Service{
		appCtx:      appCtx,
		candidates:  repository.NewCandidateRepository(appCtx.DB),
		searchLimit: appCtx.Config.Limits.SearchResults,
		topLimit:    appCtx.Config.Limits.TopResults,
		rnd:         rnd,
	}
}

// SeekingGenders expands a seeking preference into the genders it accepts;
// nil means any gender.
func SeekingGenders(seeking string) []string {
	switch seeking {
	case db.GenderMale, db.GenderFemale:
		return []string{seeking}
	default:
		return nil
	}
}

// FilteredRandom returns one uniformly random eligible candidate, or nil when
// there is none. city narrows the pick by substring when not empty.
func (s *Service) FilteredRandom(ctx context.Context, caller *db.User, city string) (*db.User, error) {
	ids, err := s.candidates.IDs(ctx, repository.CandidateFilter{
		ExcludeID:      caller.ID,
		Genders:        SeekingGenders(caller.SeekingGender),
		CityKey:        profile.CityKey(city),
		ExcludeLikedBy: caller.ID,
	})
	if err != nil || len(ids) == 0 {
		return nil, err
	}

	id := ids[s.intN(len(ids))]
	users, err := s.candidates.Load(ctx, []int64{id})
	if err != nil || len(users) == 0 {
		return nil, err
	}
	s.appCtx.Logger.Debug("random candidate picked", "caller", caller.ID, "pool", len(ids), "candidate", id)
	return &users[0], nil
}

// CitySearch returns up to the search limit candidate ids in city, in
// random order.
func (s *Service) CitySearch(ctx context.Context, caller *db.User, city string) ([]int64, error) {
	key := profile.CityKey(city)
	if key == "" {
		return nil, nil
	}
	ids, err := s.candidates.IDs(ctx, repository.CandidateFilter{
		ExcludeID:      caller.ID,
		Genders:        SeekingGenders(caller.SeekingGender),
		CityKey:        key,
		ExcludeLikedBy: caller.ID,
	})
	if err != nil {
		return nil, err
	}
	return s.sample(ids), nil
}

// AdvancedSearch applies gender, city and goal together. The requested
// gender is intersected with the caller's seeking filter.
func (s *Service) AdvancedSearch(ctx context.Context, caller *db.User, c Criteria) ([]int64, error) {
	genders, ok := intersect(SeekingGenders(c.Gender), SeekingGenders(caller.SeekingGender))
	if !ok {
		return nil, nil
	}
	ids, err := s.candidates.IDs(ctx, repository.CandidateFilter{
		ExcludeID:      caller.ID,
		Genders:        genders,
		CityKey:        profile.CityKey(c.City),
		Goal:           c.Goal,
		ExcludeLikedBy: caller.ID,
	})
	if err != nil {
		return nil, err
	}
	return s.sample(ids), nil
}

// Top returns the leaderboard: searchable users by rating, then likes
// received. gender may be empty.
func (s *Service) Top(ctx context.Context, callerID int64, gender string) ([]db.User, error) {
	if gender == db.SeekingAny {
		gender = ""
	}
	return s.candidates.Top(ctx, callerID, gender, s.topLimit)
}

// Candidate loads one candidate for display; nil if the user stopped being
// searchable since the list was built.
func (s *Service) Candidate(ctx context.Context, id int64) (*db.User, error) {
	users, err := s.candidates.Load(ctx, []int64{id})
	if err != nil || len(users) == 0 {
		return nil, err
	}
	return &users[0], nil
}

// sample shuffles ids and caps them to the search limit.
func (s *Service) sample(ids []int64) []int64 {
	s.mu.Lock()
	s.rnd.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	s.mu.Unlock()
	if len(ids) > s.searchLimit {
		ids = ids[:s.searchLimit]
	}
	return ids
}

func (s *Service) intN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.IntN(n)
}

// intersect combines two gender filters where nil means any. ok is false
// when the filters exclude each other.
func intersect(a, b []string) ([]string, bool) {
	switch {
	case a == nil:
		return b, true
	case b == nil:
		return a, true
	}
	var out []string
	for _, x := range a {
		for _, y := range b {
			if x == y {
				out = append(out, x)
			}
		}
	}
	return out, len(out) > 0
}
