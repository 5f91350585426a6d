package models

import (
	"time"
)

type GroupRole string

const (
	GroupRoleAdmin       GroupRole = "Admin"
	GroupRoleParticipant GroupRole = "Participant"
)

type Group struct {
	ID        string `json:"id" gorm:"primaryKey;size:36"`
	Name      string `json:"name" gorm:"not null;size:200;index" validate:"required,min=1,max=200"`
	CreatedBy string `json:"created_by" gorm:"not null;index;size:36"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Creator   User            `json:"-" gorm:"foreignKey:CreatedBy"`
	Members   []GroupMember   `json:"members" gorm:"foreignKey:GroupID"`
	Materials []GroupMaterial `json:"materials" gorm:"foreignKey:GroupID"`
}

// GroupMember is one row per member. Membership is a set: the unique index on
// (group_id, user_id) makes add/remove single-row operations instead of
// read-modify-write over an embedded array.
type GroupMember struct {
	ID       uint   `json:"id" gorm:"primaryKey"`
	GroupID  string `json:"group_id" gorm:"not null;size:36;uniqueIndex:idx_group_member"`
	UserID   string `json:"user_id" gorm:"not null;size:36;uniqueIndex:idx_group_member;index"`
	Username string `json:"username" gorm:"not null;size:100"`

	JoinedAt time.Time `json:"joined_at"`

	Group Group `json:"-" gorm:"foreignKey:GroupID"`
	User  User  `json:"-" gorm:"foreignKey:UserID"`
}

type GroupMaterial struct {
	ID      string `json:"id" gorm:"primaryKey;size:36"`
	GroupID string `json:"group_id" gorm:"not null;index;size:36"`

	Title     string  `json:"title" gorm:"not null;size:255" validate:"required,max=255"`
	Link      *string `json:"link" gorm:"size:1000"`
	ObjectKey *string `json:"object_key" gorm:"size:500"`

	UploadedAt time.Time `json:"uploaded_at"`

	Group Group `json:"-" gorm:"foreignKey:GroupID"`
}

func (Group) TableName() string         { return "groups" }
func (GroupMember) TableName() string   { return "group_members" }
func (GroupMaterial) TableName() string { return "group_materials" }
