// Package rooms implements the document room actions on top of a hosted collaboration backend.
// Every action makes one backend round trip plus fixed side effects: cached views are
// revalidated and, when access is granted, the new collaborator is notified.
package rooms

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

const (
	DefaultTitle = "Untitled Document"
	HomePath     = "/"
)

// DocumentPath is the path of the cached view of a single document.
func DocumentPath(roomID string) string {
	return "/documents/" + roomID
}

// Backend is the hosted collaboration API.
type Backend interface {
	CreateRoom(ctx context.Context, req CreateRoomRequest) (*Room, error)
	GetRoom(ctx context.Context, roomID string) (*Room, error)
	GetRooms(ctx context.Context, q ListRoomsQuery) ([]Room, error)
	UpdateRoom(ctx context.Context, roomID string, req UpdateRoomRequest) (*Room, error)
	DeleteRoom(ctx context.Context, roomID string) error
	TriggerInboxNotification(ctx context.Context, req TriggerNotificationRequest) error
}

// Revalidator drops cached renderings of a path.
type Revalidator interface {
	RevalidatePath(path string)
}

type RevalidatorFunc func(path string)

func (f RevalidatorFunc) RevalidatePath(path string) { f(path) }

// IDGenerator creates room and notification ids.
type IDGenerator func() string

// Navigation tells the caller where to send the user after an action.
type Navigation struct {
	RedirectTo string `json:"redirectTo"`
}

type Service struct {
	backend     Backend
	revalidator Revalidator
	newID       IDGenerator
	logger      *slog.Logger
}

type Option func(*Service)

func WithRevalidator(r Revalidator) Option {
	return func(s *Service) {
		s.revalidator = r
	}
}

func WithIDGenerator(g IDGenerator) Option {
	return func(s *Service) {
		s.newID = g
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

func NewService(backend Backend, opts ...Option) *Service {
	s := &Service{
		backend:     backend,
		revalidator: RevalidatorFunc(func(string) {}),
		newID:       uuid.NewString,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// fail logs err at the action boundary and hands it back to the caller.
func (s *Service) fail(action string, err error, args ...any) error {
	s.logger.Error("room action failed", append([]any{"action", action, "err", err}, args...)...)
	return err
}

type CreateDocumentParams struct {
	UserID string
	Email  string
}

// CreateDocument creates a room owned by the caller. The creator gets write access and
// nobody else gets any.
func (s *Service) CreateDocument(ctx context.Context, p CreateDocumentParams) (*Room, error) {
	if strings.TrimSpace(p.Email) == "" {
		return nil, s.fail("create", fmt.Errorf("%w: creator email is required", ErrInvalid))
	}
	room, err := s.backend.CreateRoom(ctx, CreateRoomRequest{
		ID: s.newID(),
		Metadata: Metadata{
			CreatorID: p.UserID,
			Email:     p.Email,
			Title:     DefaultTitle,
		},
		UsersAccesses:   AccessMap{p.Email: {RoomWrite}},
		DefaultAccesses: []Permission{},
	})
	if err != nil {
		return nil, s.fail("create", fmt.Errorf("failed to create room: %w", err), "user", p.UserID)
	}
	s.revalidator.RevalidatePath(HomePath)
	return room, nil
}

// GetDocument fetches a room the caller has access to.
func (s *Service) GetDocument(ctx context.Context, roomID, user string) (*Room, error) {
	room, err := s.backend.GetRoom(ctx, roomID)
	if err != nil {
		return nil, s.fail("get", fmt.Errorf("failed to get room: %w", err), "room", roomID)
	}
	if !room.HasAccess(user) {
		return nil, s.fail("get", ErrAccessDenied, "room", roomID, "user", user)
	}
	return room, nil
}

// GetDocuments lists the rooms the user has access to.
func (s *Service) GetDocuments(ctx context.Context, user string) ([]Room, error) {
	rooms, err := s.backend.GetRooms(ctx, ListRoomsQuery{UserID: user})
	if err != nil {
		return nil, s.fail("list", fmt.Errorf("failed to list rooms: %w", err), "user", user)
	}
	return rooms, nil
}

// UpdateDocument renames a room and returns the updated room.
func (s *Service) UpdateDocument(ctx context.Context, roomID, title string) (*Room, error) {
	room, err := s.backend.UpdateRoom(ctx, roomID, UpdateRoomRequest{
		Metadata: &MetadataUpdate{Title: &title},
	})
	if err != nil {
		return nil, s.fail("rename", fmt.Errorf("failed to update room title: %w", err), "room", roomID)
	}
	s.revalidator.RevalidatePath(DocumentPath(roomID))
	return room, nil
}

type ShareDocumentParams struct {
	RoomID    string
	Email     string
	UserType  UserType
	UpdatedBy Actor
}

// UpdateDocumentAccess grants email the permissions of p.UserType and notifies them.
func (s *Service) UpdateDocumentAccess(ctx context.Context, p ShareDocumentParams) (*Room, error) {
	if !p.UserType.Valid() {
		return nil, s.fail("share", fmt.Errorf("%w: unknown user type %q", ErrInvalid, p.UserType), "room", p.RoomID)
	}
	room, err := s.backend.UpdateRoom(ctx, p.RoomID, UpdateRoomRequest{
		UsersAccesses: AccessUpdate{p.Email: AccessForUserType(p.UserType)},
	})
	if err != nil {
		return nil, s.fail("share", fmt.Errorf("failed to update room access: %w", err), "room", p.RoomID, "user", p.Email)
	}

	if err := s.backend.TriggerInboxNotification(ctx, TriggerNotificationRequest{
		UserID:    p.Email,
		Kind:      KindDocumentAccess,
		SubjectID: s.newID(),
		RoomID:    p.RoomID,
		ActivityData: map[string]any{
			"userType":  string(p.UserType),
			"title":     fmt.Sprintf("You have been granted %s access to the document by %s.", p.UserType, p.UpdatedBy.Name),
			"updatedBy": p.UpdatedBy.Name,
			"avatar":    p.UpdatedBy.Avatar,
			"email":     p.UpdatedBy.Email,
		},
	}); err != nil {
		// access is already granted at this point
		s.logger.Warn("failed to notify collaborator", "room", p.RoomID, "user", p.Email, "err", err)
	}

	s.revalidator.RevalidatePath(DocumentPath(p.RoomID))
	return room, nil
}

// RemoveCollaborator revokes email's access. The room's creator cannot be removed.
func (s *Service) RemoveCollaborator(ctx context.Context, roomID, email string) (*Room, error) {
	room, err := s.backend.GetRoom(ctx, roomID)
	if err != nil {
		return nil, s.fail("unshare", fmt.Errorf("failed to get room: %w", err), "room", roomID)
	}
	if room.Metadata.Email == email {
		return nil, s.fail("unshare", ErrSelfRemoval, "room", roomID, "user", email)
	}
	updated, err := s.backend.UpdateRoom(ctx, roomID, UpdateRoomRequest{
		UsersAccesses: AccessUpdate{email: nil},
	})
	if err != nil {
		return nil, s.fail("unshare", fmt.Errorf("failed to remove collaborator: %w", err), "room", roomID, "user", email)
	}
	s.revalidator.RevalidatePath(DocumentPath(roomID))
	return updated, nil
}

// DeleteDocument deletes a room and sends the caller back to the document list.
func (s *Service) DeleteDocument(ctx context.Context, roomID string) (Navigation, error) {
	if err := s.backend.DeleteRoom(ctx, roomID); err != nil {
		return Navigation{}, s.fail("delete", fmt.Errorf("failed to delete room: %w", err), "room", roomID)
	}
	s.revalidator.RevalidatePath(HomePath)
	return Navigation{RedirectTo: HomePath}, nil
}
