package models

import "time"

// Account represents a registered user together with their favorites list.
type Account struct {
	ID           string    `json:"id" gorm:"primaryKey;type:varchar(36)" bson:"_id"`
	Username     string    `json:"username" gorm:"uniqueIndex;type:varchar(100);not null" bson:"username"`
	Email        string    `json:"email" gorm:"uniqueIndex;type:varchar(255);not null" bson:"email"`
	Password     string    `json:"-" gorm:"type:varchar(255);not null" bson:"password"` // bcrypt hash, never serialized
	ProfileImage string    `json:"profileImage,omitempty" gorm:"type:varchar(255)" bson:"profileImage,omitempty"`
	Favorites    Favorites `json:"favorites" gorm:"serializer:json;type:text" bson:"favorites"`
	Version      int64     `json:"-" gorm:"not null;default:0" bson:"version"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Clone returns a deep copy so callers can hand out accounts without sharing the favorites backing array.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	c.Favorites = a.Favorites.Clone()
	return &c
}
