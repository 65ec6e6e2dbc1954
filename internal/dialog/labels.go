package dialog

import (
	"github.com/oggyb/matchbot/internal/chat"
	"github.com/oggyb/matchbot/internal/db"
)

// Inbound vocabulary. Matching is exact and case-sensitive.
const (
	CmdStart = "/start"
	CmdFind  = "/find"

	LabelCreateProfile  = "create profile"
	LabelEditProfile    = "edit profile"
	LabelSearch         = "search"
	LabelSearchByCity   = "search by city"
	LabelAdvancedSearch = "advanced search"
	LabelMyProfile      = "my profile"
	LabelWhoLikedMe     = "who liked me"
	LabelMyMatches      = "my matches"
	LabelTop            = "top"
	LabelContactAdmin   = "contact admin"

	LabelAdminPanel    = "admin panel"
	LabelStats         = "stats"
	LabelDetailedStats = "detailed stats"
	LabelUsers         = "users"
	LabelBroadcast     = "broadcast"
	LabelRefreshDB     = "refresh db"
	LabelBans          = "bans"
	LabelBanUser       = "ban user"
	LabelUnbanUser     = "unban user"
	LabelUnbanAll      = "unban all"

	LabelBack   = "back"
	LabelCancel = "cancel"
	LabelFinish = "finish"

	LabelAnyCity   = "any city"
	LabelOtherCity = "other city"
	LabelAnyGoal   = "any goal"
	LabelNextPhoto = "next photo"
)

// Callback payloads carried by inline buttons.
const (
	CbLike        = "like:"
	CbNextProfile = "next_profile"
	CbGallery     = "gallery:"
	CbTop         = "top:"
	CbUsers       = "users:"
	CbUnban       = "unban:"
)

func isCancel(text string) bool {
	switch text {
	case LabelBack, LabelCancel, LabelFinish:
		return true
	}
	return false
}

func mainMenu(u *db.User, isAdmin bool) *chat.Keyboard {
	var rows [][]string
	if !u.Complete() {
		rows = append(rows, chat.Row(LabelCreateProfile))
	} else {
		rows = append(rows,
			chat.Row(LabelSearch, LabelSearchByCity),
			chat.Row(LabelAdvancedSearch, LabelTop),
			chat.Row(LabelWhoLikedMe, LabelMyMatches),
			chat.Row(LabelMyProfile, LabelEditProfile),
			chat.Row(LabelContactAdmin),
		)
	}
	if isAdmin {
		rows = append(rows, chat.Row(LabelAdminPanel))
	}
	return chat.Rows(rows...)
}

func adminMenu() *chat.Keyboard {
	return chat.Rows(
		chat.Row(LabelStats, LabelDetailedStats),
		chat.Row(LabelUsers, LabelBans),
		chat.Row(LabelBroadcast, LabelRefreshDB),
		chat.Row(LabelBanUser, LabelUnbanUser),
		chat.Row(LabelUnbanAll),
		chat.Row(LabelBack),
	)
}

func cancelOnly() *chat.Keyboard {
	return chat.Rows(chat.Row(LabelCancel))
}

func genderKeyboard(withAny bool) *chat.Keyboard {
	row := chat.Row(db.GenderMale, db.GenderFemale)
	if withAny {
		row = append(row, db.SeekingAny)
	}
	return chat.Rows(row, chat.Row(LabelCancel))
}

func goalKeyboard(extra ...string) *chat.Keyboard {
	return chat.Rows(
		chat.Row(db.GoalSerious, db.GoalFriendship),
		chat.Row(db.GoalCasual, db.GoalActive),
		append(chat.Row(extra...), LabelCancel),
	)
}

func cityKeyboard(cities []string, extra []string, closing string) *chat.Keyboard {
	var rows [][]string
	for i := 0; i < len(cities); i += 2 {
		end := min(i+2, len(cities))
		rows = append(rows, chat.Row(cities[i:end]...))
	}
	if len(extra) > 0 {
		rows = append(rows, chat.Row(extra...))
	}
	rows = append(rows, chat.Row(closing))
	return chat.Rows(rows...)
}

func photoKeyboard() *chat.Keyboard {
	return chat.Rows(chat.Row(LabelFinish))
}

func galleryKeyboard() *chat.Keyboard {
	return chat.Rows(chat.Row(LabelNextPhoto), chat.Row(LabelBack))
}
