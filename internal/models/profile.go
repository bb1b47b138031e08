package models

import "time"

// Profile extends a User with presentation fields and the follow graph.
// Counts and IsFollowing are derived at query time.
type Profile struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UserID          uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	User            User      `gorm:"foreignKey:UserID" json:"-"`
	Bio             string    `gorm:"size:500" json:"bio"`
	ProfileImage    *string   `gorm:"type:text" json:"profile_image"`
	BackgroundImage *string   `gorm:"type:text" json:"background_image"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`

	Username       string `gorm:"->;-:migration" json:"username"`
	FirstName      string `gorm:"->;-:migration" json:"first_name"`
	LastName       string `gorm:"->;-:migration" json:"last_name"`
	Email          string `gorm:"->;-:migration" json:"email,omitempty"`
	FollowersCount int    `gorm:"->;-:migration" json:"followers_count"`
	FollowingCount int    `gorm:"->;-:migration" json:"following_count"`
	IsFollowing    bool   `gorm:"->;-:migration" json:"is_following"`
}

// Follow is an edge of the self-referential "following" relation:
// ProfileID follows FollowingID.
type Follow struct {
	ProfileID   uint      `gorm:"primaryKey;autoIncrement:false" json:"profile_id"`
	FollowingID uint      `gorm:"primaryKey;autoIncrement:false;index" json:"following_id"`
	Profile     Profile   `gorm:"foreignKey:ProfileID;constraint:OnDelete:CASCADE" json:"-"`
	Following   Profile   `gorm:"foreignKey:FollowingID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName keeps the join table name stable.
func (Follow) TableName() string {
	return "profile_following"
}
