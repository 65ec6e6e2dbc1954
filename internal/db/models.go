package db

import (
	"time"
)

// Profile vocabularies. Values are stored verbatim.
const (
	GenderMale   = "male"
	GenderFemale = "female"
	SeekingAny   = "any"

	GoalSerious    = "serious"
	GoalFriendship = "friendship"
	GoalCasual     = "casual"
	GoalActive     = "active"
)

// Goals lists the dating goals in display order.
var Goals = []string{GoalSerious, GoalFriendship, GoalCasual, GoalActive}

// User is a chat-platform participant. The primary key is the platform's
// own user id, so no surrogate key exists.
//
// Profile fields use zero values for "not set": Age == 0 means the profile
// was never filled in. CityKey is the lower-cased, emoji-free form of City
// used for substring search.
type User struct {
	ID          int64  `gorm:"primaryKey;autoIncrement:false"`
	Username    string `gorm:"size:64;not null;default:''"`
	DisplayName string `gorm:"size:128;not null;default:''"`

	Age           int    `gorm:"not null;default:0"`
	Gender        string `gorm:"size:16;not null;default:'';index:idx_users_search,priority:2"`
	City          string `gorm:"size:128;not null;default:''"`
	CityKey       string `gorm:"size:128;not null;default:'';index"`
	SeekingGender string `gorm:"size:16;not null;default:''"`
	Goal          string `gorm:"size:16;not null;default:''"`
	Bio           string `gorm:"type:text;not null"`

	HasPhoto       bool    `gorm:"not null;default:false"`
	LikesReceived  int     `gorm:"not null;default:0"`
	Rating         float64 `gorm:"not null;default:5;index:idx_users_rating,sort:desc"`
	DailyLikesSent int     `gorm:"not null;default:0"`
	// LastLikeDay is the server-local date (YYYY-MM-DD) of the last like sent, "" if never.
	LastLikeDay string `gorm:"size:10;not null;default:''"`
	Banned      bool   `gorm:"not null;default:false;index:idx_users_search,priority:1"`

	CreatedAt  time.Time `gorm:"autoCreateTime"`
	LastActive time.Time

	Photos []Photo `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// ProfileFilled reports whether all six profile fields are set.
func (u *User) ProfileFilled() bool {
	return u.Age > 0 && u.Gender != "" && u.City != "" &&
		u.SeekingGender != "" && u.Goal != "" && u.Bio != ""
}

// Complete reports whether the profile is filled and has at least one photo.
func (u *User) Complete() bool {
	return u.ProfileFilled() && u.HasPhoto
}

// Searchable reports whether the user may appear in candidate queries.
func (u *User) Searchable() bool {
	return u.Complete() && !u.Banned
}

// Photo references an opaque platform media id. The lowest Position is the
// main photo.
type Photo struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	UserID    int64     `gorm:"not null;index:idx_photos_user_position,priority:1"`
	Position  int       `gorm:"not null;default:0;index:idx_photos_user_position,priority:2"`
	MediaID   string    `gorm:"size:255;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// Like is a directed expression of interest.
//
// Indexes:
//   - uniq_likes_pair(from_user_id, to_user_id): one like per ordered pair,
//     also serves the reverse-edge lookup on insert.
//   - idx_likes_to_created(to_user_id, created_at): "who liked me" lists.
type Like struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement"`
	FromUserID int64     `gorm:"not null;uniqueIndex:uniq_likes_pair,priority:1"`
	ToUserID   int64     `gorm:"not null;uniqueIndex:uniq_likes_pair,priority:2;index:idx_likes_to_created,priority:1"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index:idx_likes_to_created,priority:2"`

	FromUser User `gorm:"foreignKey:FromUserID;constraint:OnDelete:CASCADE"`
	ToUser   User `gorm:"foreignKey:ToUserID;constraint:OnDelete:CASCADE"`
}

// Match is the symmetric relation stored once with UserAID < UserBID.
type Match struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	UserAID   int64     `gorm:"not null;uniqueIndex:uniq_matches_pair,priority:1"`
	UserBID   int64     `gorm:"not null;uniqueIndex:uniq_matches_pair,priority:2;index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`

	UserA User `gorm:"foreignKey:UserAID;constraint:OnDelete:CASCADE"`
	UserB User `gorm:"foreignKey:UserBID;constraint:OnDelete:CASCADE"`
}

// Other returns the counterpart of id in the match.
func (m Match) Other(id int64) int64 {
	if m.UserAID == id {
		return m.UserBID
	}
	return m.UserAID
}

// CanonicalPair orders two ids the way matches are stored.
func CanonicalPair(a, b int64) (int64, int64) {
	if a < b {
		return a, b
	}
	return b, a
}

// ProfileView is an append-only "viewer saw viewed" event.
type ProfileView struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	ViewerID  int64     `gorm:"not null;index"`
	ViewedID  int64     `gorm:"not null;index:idx_views_viewed_created,priority:1"`
	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_views_viewed_created,priority:2"`

	Viewer User `gorm:"foreignKey:ViewerID;constraint:OnDelete:CASCADE"`
	Viewed User `gorm:"foreignKey:ViewedID;constraint:OnDelete:CASCADE"`
}

// Models lists every table in migration order.
func Models() []any {
	return []any{&User{}, &Photo{}, &Like{}, &Match{}, &ProfileView{}}
}
