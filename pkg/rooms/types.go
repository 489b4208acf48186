package rooms

import (
	"errors"
	"time"
)

var (
	ErrAccessDenied = errors.New("you do not have access to this document")
	ErrSelfRemoval  = errors.New("you cannot remove yourself as a collaborator from the document")
	ErrNotFound     = errors.New("room not found")
	ErrInvalid      = errors.New("invalid request")
)

// Permission is a single access grant understood by the collaboration backend.
type Permission string

const (
	RoomWrite        Permission = "room:write"
	RoomRead         Permission = "room:read"
	RoomPresenceRead Permission = "room:presence:read"
)

// UserType is the role a collaborator is shared with.
type UserType string

const (
	UserCreator UserType = "creator"
	UserEditor  UserType = "editor"
	UserViewer  UserType = "viewer"
)

// AccessForUserType maps a role onto the permissions granted for it.
func AccessForUserType(t UserType) []Permission {
	switch t {
	case UserCreator, UserEditor:
		return []Permission{RoomWrite}
	case UserViewer:
		return []Permission{RoomRead, RoomPresenceRead}
	}
	return []Permission{RoomRead, RoomPresenceRead}
}

func (t UserType) Valid() bool {
	return t == UserCreator || t == UserEditor || t == UserViewer
}

// UserTypeForAccess is the inverse of AccessForUserType, used when listing collaborators.
func UserTypeForAccess(perms []Permission) UserType {
	for _, p := range perms {
		if p == RoomWrite {
			return UserEditor
		}
	}
	return UserViewer
}

// AccessMap maps a user id (the user's email) to its permissions.
type AccessMap map[string][]Permission

// AccessUpdate maps a user id to its new permissions. A nil value encodes as null and revokes
// access.
type AccessUpdate map[string][]Permission

type Metadata struct {
	CreatorID string `json:"creatorId"`
	Email     string `json:"email"`
	Title     string `json:"title"`
}

type Room struct {
	Type             string       `json:"type,omitempty"`
	ID               string       `json:"id"`
	CreatedAt        time.Time    `json:"createdAt"`
	LastConnectionAt *time.Time   `json:"lastConnectionAt,omitempty"`
	Metadata         Metadata     `json:"metadata"`
	DefaultAccesses  []Permission `json:"defaultAccesses"`
	UsersAccesses    AccessMap    `json:"usersAccesses"`
}

// HasAccess reports whether user appears in the room's access map.
func (r *Room) HasAccess(user string) bool {
	_, ok := r.UsersAccesses[user]
	return ok
}

type CreateRoomRequest struct {
	ID              string       `json:"id"`
	Metadata        Metadata     `json:"metadata"`
	UsersAccesses   AccessMap    `json:"usersAccesses"`
	DefaultAccesses []Permission `json:"defaultAccesses"`
}

// UpdateRoomRequest carries the fields to change. Unset fields are left alone.
type UpdateRoomRequest struct {
	Metadata      *MetadataUpdate `json:"metadata,omitempty"`
	UsersAccesses AccessUpdate    `json:"usersAccesses,omitempty"`
}

type MetadataUpdate struct {
	Title *string `json:"title,omitempty"`
}

type ListRoomsQuery struct {
	UserID string
}

// Notification kinds.
const KindDocumentAccess = "$documentAccess"

type TriggerNotificationRequest struct {
	UserID       string         `json:"userId"`
	Kind         string         `json:"kind"`
	SubjectID    string         `json:"subjectId"`
	RoomID       string         `json:"roomId,omitempty"`
	ActivityData map[string]any `json:"activityData"`
}

type Notification struct {
	ID           string         `json:"id"`
	Kind         string         `json:"kind"`
	SubjectID    string         `json:"subjectId"`
	RoomID       string         `json:"roomId,omitempty"`
	NotifiedAt   time.Time      `json:"notifiedAt"`
	ReadAt       *time.Time     `json:"readAt,omitempty"`
	ActivityData map[string]any `json:"activityData"`
}

// Actor describes the user performing a sharing change.
type Actor struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar"`
}
