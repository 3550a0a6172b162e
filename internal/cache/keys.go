package cache

import (
	"fmt"
	"time"
)

const (
	UserKeyPrefix            = "user:%d"
	QuestionKeyPrefix        = "question:%d"
	UnreadCountKeyPrefix     = "notifications:unread:%d"
	TagListKey               = "tags:all"
	BlacklistKeyPrefix       = "blacklist:%s"
	PasswordResetPrefix      = "password_reset:%s"
	PasswordChangedKeyPrefix = "password_changed:%d"
)

const (
	UserTTL          = 5 * time.Minute
	QuestionTTL      = 2 * time.Minute
	UnreadCountTTL   = time.Minute
	TagListTTL       = 10 * time.Minute
	PasswordResetTTL = time.Hour
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func QuestionKey(questionID uint) string {
	return fmt.Sprintf(QuestionKeyPrefix, questionID)
}

func UnreadCountKey(userID uint) string {
	return fmt.Sprintf(UnreadCountKeyPrefix, userID)
}

func BlacklistKey(jti string) string {
	return fmt.Sprintf(BlacklistKeyPrefix, jti)
}

func PasswordResetKey(token string) string {
	return fmt.Sprintf(PasswordResetPrefix, token)
}

// PasswordChangedKey holds the unix second of the user's last password reset.
func PasswordChangedKey(userID uint) string {
	return fmt.Sprintf(PasswordChangedKeyPrefix, userID)
}
