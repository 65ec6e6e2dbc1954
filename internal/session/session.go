// Package session keeps the per-user dialog state between updates.
package session

import (
	"context"
	"slices"
	"strings"
)

// State is a dialog state. The set is closed.
type State string

const (
	StateIdle                   State = "IDLE"
	StateProfileAge             State = "PROFILE_AGE"
	StateProfileGender          State = "PROFILE_GENDER"
	StateProfileCity            State = "PROFILE_CITY"
	StateProfileSeeking         State = "PROFILE_SEEKING"
	StateProfileGoal            State = "PROFILE_GOAL"
	StateProfileBio             State = "PROFILE_BIO"
	StateAddMainPhoto           State = "ADD_MAIN_PHOTO"
	StateAdvancedSearchGender   State = "ADVANCED_SEARCH_GENDER"
	StateAdvancedSearchCity     State = "ADVANCED_SEARCH_CITY"
	StateAdvancedSearchCityFree State = "ADVANCED_SEARCH_CITY_FREE"
	StateAdvancedSearchGoal     State = "ADVANCED_SEARCH_GOAL"
	StateAwaitingCityQuery      State = "AWAITING_CITY_QUERY"
	StateContactAdmin           State = "CONTACT_ADMIN"
	StateAdminBroadcast         State = "ADMIN_BROADCAST"
	StateAdminBanID             State = "ADMIN_BAN_ID"
	StateAdminUnbanID           State = "ADMIN_UNBAN_ID"
	StateViewUserGallery        State = "VIEW_USER_GALLERY"
)

// States lists every state.
var States = []State{
	StateIdle,
	StateProfileAge, StateProfileGender, StateProfileCity, StateProfileSeeking, StateProfileGoal, StateProfileBio,
	StateAddMainPhoto,
	StateAdvancedSearchGender, StateAdvancedSearchCity, StateAdvancedSearchCityFree, StateAdvancedSearchGoal,
	StateAwaitingCityQuery,
	StateContactAdmin,
	StateAdminBroadcast, StateAdminBanID, StateAdminUnbanID,
	StateViewUserGallery,
}

// Valid reports whether s belongs to the closed state set.
func (s State) Valid() bool { return slices.Contains(States, s) }

// Wizard reports whether s is a step of a multi-step flow whose handler
// owns every input while the user is in it.
func (s State) Wizard() bool {
	switch {
	case strings.HasPrefix(string(s), "PROFILE_"),
		strings.HasPrefix(string(s), "ADVANCED_SEARCH_"),
		strings.HasPrefix(string(s), "ADMIN_"),
		s == StateAddMainPhoto,
		s == StateContactAdmin:
		return true
	}
	return false
}

// SearchType tells how the current candidate list was produced.
type SearchType string

const (
	SearchRandom   SearchType = "random"
	SearchCity     SearchType = "city"
	SearchAdvanced SearchType = "advanced"
)

// ProfileDraft buffers wizard answers until the last step commits them.
type ProfileDraft struct {
	Age           int    `json:"age,omitempty"`
	Gender        string `json:"gender,omitempty"`
	City          string `json:"city,omitempty"`
	SeekingGender string `json:"seeking,omitempty"`
	Goal          string `json:"goal,omitempty"`
	Bio           string `json:"bio,omitempty"`
	// Editing is set when an existing profile is being rewritten; the first
	// uploaded photo then replaces the old set.
	Editing     bool `json:"editing,omitempty"`
	PhotosAdded int  `json:"photos_added,omitempty"`
}

// SearchContext is the candidate list being browsed and the advanced search
// criteria collected so far.
type SearchContext struct {
	Type   SearchType `json:"type,omitempty"`
	IDs    []int64    `json:"ids,omitempty"`
	Cursor int        `json:"cursor,omitempty"`

	Gender string `json:"gender,omitempty"`
	City   string `json:"city,omitempty"`
	Goal   string `json:"goal,omitempty"`
}

// Next returns the next candidate id and advances the cursor.
func (c *SearchContext) Next() (int64, bool) {
	if c.Cursor >= len(c.IDs) {
		return 0, false
	}
	id := c.IDs[c.Cursor]
	c.Cursor++
	return id, true
}

// Flags hold transient context outside of wizards.
type Flags struct {
	GalleryUser  int64 `json:"gallery_user,omitempty"`
	GalleryIndex int   `json:"gallery_index,omitempty"`
}

// Session is everything the dialog engine remembers about one user.
type Session struct {
	State  State         `json:"state"`
	Draft  ProfileDraft  `json:"draft"`
	Search SearchContext `json:"search"`
	Flags  Flags         `json:"flags"`
}

// New returns an idle session.
func New() *Session {
	return &Session{State: StateIdle}
}

// Reset drops every transient field and returns to IDLE.
func (s *Session) Reset() {
	*s = Session{State: StateIdle}
}

// ResetKeepSearch returns to IDLE but keeps the candidate list so inline
// buttons on already-sent cards keep working.
func (s *Session) ResetKeepSearch() {
	search := s.Search
	s.Reset()
	s.Search = search
}

// Empty reports whether s is idle and remembers nothing else, so a store
// may drop it. An active search with no candidates loaded yet still counts.
func (s *Session) Empty() bool {
	c := s.Search
	return s.State == StateIdle &&
		s.Draft == (ProfileDraft{}) &&
		s.Flags == (Flags{}) &&
		c.Type == "" && len(c.IDs) == 0 && c.Cursor == 0 &&
		c.Gender == "" && c.City == "" && c.Goal == ""
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	c := *s
	c.Search.IDs = slices.Clone(s.Search.IDs)
	return &c
}

// Store persists sessions. Load returns a fresh idle session for unknown
// users, never an error for absence.
type Store interface {
	Load(ctx context.Context, userID int64) (*Session, error)
	Save(ctx context.Context, userID int64, s *Session) error
	Delete(ctx context.Context, userID int64) error
}
