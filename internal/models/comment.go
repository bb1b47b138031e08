package models

import (
	"time"

	"gorm.io/gorm"
)

// Comment is a remark left by a user on a post.
type Comment struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Content   string         `gorm:"type:text;not null" json:"content"`
	UserID    uint           `gorm:"not null;index" json:"user_id"`
	PostID    uint           `gorm:"not null;index" json:"post_id"`
	User      *User          `gorm:"foreignKey:UserID" json:"-"`
	Author    string         `gorm:"->;-:migration" json:"author"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Snippet returns at most n runes of the content, used by moderation listings.
func (c *Comment) Snippet(n int) string {
	r := []rune(c.Content)
	if len(r) <= n {
		return c.Content
	}
	return string(r[:n])
}
