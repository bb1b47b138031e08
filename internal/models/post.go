package models

import (
	"time"

	"gorm.io/gorm"
)

// Post is a user-authored content item. IsShow is controlled by the author,
// IsActive by administrators; a post is publicly listed only when both hold.
type Post struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Title      string    `gorm:"size:100;not null" json:"title"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	Image      *string   `gorm:"type:text" json:"image"`
	UserID     uint      `gorm:"not null;index" json:"author_id"`
	User       User      `gorm:"foreignKey:UserID" json:"-"`
	CategoryID *uint     `gorm:"index" json:"category_id"`
	Category   *Category `gorm:"foreignKey:CategoryID;constraint:OnDelete:SET NULL" json:"category,omitempty"`
	IsShow     bool      `gorm:"not null;index" json:"is_show"`
	IsActive   bool      `gorm:"not null;index" json:"is_active"`
	Comments   []Comment `gorm:"foreignKey:PostID" json:"comments"`

	// Author is the username of UserID, computed at query time
	Author string `gorm:"->;-:migration" json:"author"`
	// LikesCount is not persisted; computed at query time
	LikesCount int `gorm:"->;-:migration" json:"likes_count"`
	// CommentsCount is not persisted; computed at query time
	CommentsCount int `gorm:"->;-:migration" json:"comments_count"`
	// Liked indicates whether the current requesting user liked this post (computed)
	Liked bool `gorm:"->;-:migration" json:"liked"`

	CreatedAt time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Visible reports whether the post may appear in public listings.
func (p *Post) Visible() bool {
	return p.IsShow && p.IsActive
}

// PostFilter narrows post listings.
type PostFilter struct {
	// OnlyVisible restricts to posts with IsShow and IsActive both true.
	OnlyVisible bool
	AuthorID    uint
	CategoryID  *uint
	IsShow      *bool
	IsActive    *bool
}
