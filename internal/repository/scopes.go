package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// Searchable restricts a users query to complete, non-banned profiles.
func Searchable(tx *gorm.DB) *gorm.DB {
	return tx.
		Where("users.banned = ?", false).
		Where("users.has_photo = ?", true).
		Where("users.age > 0 AND users.gender <> '' AND users.city <> ''").
		Where("users.seeking_gender <> '' AND users.goal <> '' AND users.bio <> ''")
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// escapeLike escapes LIKE wildcards using '!' as the escape character.
func escapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}
