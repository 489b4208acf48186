// Package roomserver is a self-hostable collaboration backend. It serves the room, access and
// inbox REST endpoints used by the rooms package, and keeps each room's document in sync with
// connected editors over websockets.
package roomserver

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/automerge/automerge-go"
	"github.com/felixge/httpsnoop"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/astromechza/automerge-docs/pkg/rooms"
	"github.com/astromechza/automerge-docs/pkg/wsync"
)

type Server struct {
	store        *Store
	docs         *docCache
	secret       string
	syncInterval time.Duration
	logger       *slog.Logger
}

type Option func(*Server)

// WithSecret requires every request to carry "Authorization: Bearer <secret>".
func WithSecret(secret string) Option {
	return func(s *Server) {
		s.secret = secret
	}
}

func WithSyncInterval(d time.Duration) Option {
	return func(s *Server) {
		s.syncInterval = d
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

func New(store *Store, opts ...Option) *Server {
	s := &Server{
		store:  store,
		docs:   &docCache{store: store},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(func(handler http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			m := httpsnoop.CaptureMetrics(handler, writer, request)
			s.logger.Info("handled", "method", request.Method, "url", request.URL, "duration", m.Duration, "status", m.Code)
		})
	})
	r.Use(s.authenticate)

	v2 := r.PathPrefix("/v2").Subrouter()
	v2.Methods(http.MethodPost).Path("/rooms").HandlerFunc(s.createRoom)
	v2.Methods(http.MethodGet).Path("/rooms").HandlerFunc(s.listRooms)
	v2.Methods(http.MethodGet).Path("/rooms/{room}").HandlerFunc(s.getRoom)
	v2.Methods(http.MethodPost).Path("/rooms/{room}").HandlerFunc(s.updateRoom)
	v2.Methods(http.MethodDelete).Path("/rooms/{room}").HandlerFunc(s.deleteRoom)
	v2.Methods(http.MethodGet).Path("/rooms/{room}/document").HandlerFunc(s.getDocument)
	v2.Methods(http.MethodGet).Path("/rooms/{room}/sync").HandlerFunc(s.syncDocument)
	v2.Methods(http.MethodPost).Path("/inbox-notifications/trigger").HandlerFunc(s.triggerNotification)
	v2.Methods(http.MethodGet).Path("/users/{user}/inbox-notifications").HandlerFunc(s.listNotifications)
	return r
}

// Backup writes changed room documents to the database every interval until ctx is done, then
// once more on the way out.
func (s *Server) Backup(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			s.docs.Backup(ctx)
		case <-ctx.Done():
			s.docs.Backup(context.Background())
			return
		}
	}
}

// OpenDocuments returns the content of every room document currently held in memory.
func (s *Server) OpenDocuments() map[string][]byte {
	return s.docs.saves()
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if s.secret != "" {
			token, ok := strings.CutPrefix(request.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.secret)) != 1 {
				writeError(writer, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid secret key")
				return
			}
		}
		next.ServeHTTP(writer, request)
	})
}

// ErrorBody is the JSON error shape of every non-2xx response.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ListResponse wraps list endpoints.
type ListResponse[T any] struct {
	Data       []T     `json:"data"`
	NextCursor *string `json:"nextCursor"`
}

func writeError(writer http.ResponseWriter, status int, code, message string) {
	writeJSON(writer, status, ErrorBody{Error: code, Message: message})
}

func writeJSON(writer http.ResponseWriter, status int, body any) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	if err := json.NewEncoder(writer).Encode(body); err != nil {
		slog.Error("failed to write out", "err", err)
	}
}

func (s *Server) writeStoreError(writer http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, rooms.ErrNotFound):
		writeError(writer, http.StatusNotFound, "ROOM_NOT_FOUND", err.Error())
	case errors.Is(err, ErrRoomExists):
		writeError(writer, http.StatusConflict, "ROOM_ALREADY_EXISTS", err.Error())
	default:
		s.logger.Error("store failure", "err", err)
		writeError(writer, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}

func (s *Server) createRoom(writer http.ResponseWriter, request *http.Request) {
	var req rooms.CreateRoomRequest
	if err := json.NewDecoder(request.Body).Decode(&req); err != nil {
		writeError(writer, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	if req.ID == "" {
		writeError(writer, http.StatusUnprocessableEntity, "INVALID_BODY", "id is required")
		return
	}
	room, err := s.store.CreateRoom(request.Context(), req)
	if err != nil {
		s.writeStoreError(writer, err)
		return
	}
	writeJSON(writer, http.StatusOK, room)
}

func (s *Server) listRooms(writer http.ResponseWriter, request *http.Request) {
	list, err := s.store.GetRooms(request.Context(), rooms.ListRoomsQuery{UserID: request.URL.Query().Get("userId")})
	if err != nil {
		s.writeStoreError(writer, err)
		return
	}
	writeJSON(writer, http.StatusOK, ListResponse[rooms.Room]{Data: list})
}

func (s *Server) getRoom(writer http.ResponseWriter, request *http.Request) {
	room, err := s.store.GetRoom(request.Context(), mux.Vars(request)["room"])
	if err != nil {
		s.writeStoreError(writer, err)
		return
	}
	writeJSON(writer, http.StatusOK, room)
}

func (s *Server) updateRoom(writer http.ResponseWriter, request *http.Request) {
	var req rooms.UpdateRoomRequest
	if err := json.NewDecoder(request.Body).Decode(&req); err != nil {
		writeError(writer, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	room, err := s.store.UpdateRoom(request.Context(), mux.Vars(request)["room"], req)
	if err != nil {
		s.writeStoreError(writer, err)
		return
	}
	writeJSON(writer, http.StatusOK, room)
}

func (s *Server) deleteRoom(writer http.ResponseWriter, request *http.Request) {
	roomID := mux.Vars(request)["room"]
	if err := s.store.DeleteRoom(request.Context(), roomID); err != nil {
		s.writeStoreError(writer, err)
		return
	}
	s.docs.forget(roomID)
	writer.WriteHeader(http.StatusNoContent)
}

func (s *Server) triggerNotification(writer http.ResponseWriter, request *http.Request) {
	var req rooms.TriggerNotificationRequest
	if err := json.NewDecoder(request.Body).Decode(&req); err != nil {
		writeError(writer, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	if req.UserID == "" || req.Kind == "" || req.SubjectID == "" {
		writeError(writer, http.StatusUnprocessableEntity, "INVALID_BODY", "userId, kind and subjectId are required")
		return
	}
	if err := s.store.AddNotification(request.Context(), uuid.NewString(), req); err != nil {
		s.writeStoreError(writer, err)
		return
	}
	writeJSON(writer, http.StatusOK, struct{}{})
}

func (s *Server) listNotifications(writer http.ResponseWriter, request *http.Request) {
	list, err := s.store.Notifications(request.Context(), mux.Vars(request)["user"])
	if err != nil {
		s.writeStoreError(writer, err)
		return
	}
	writeJSON(writer, http.StatusOK, ListResponse[rooms.Notification]{Data: list})
}

func (s *Server) getDocument(writer http.ResponseWriter, request *http.Request) {
	od, err := s.docs.open(request.Context(), mux.Vars(request)["room"])
	if err != nil {
		s.writeStoreError(writer, err)
		return
	}
	writer.Header().Add("Content-Type", "application/octet-stream")
	if _, err := writer.Write(od.save()); err != nil {
		s.logger.Error("failed to write out", "err", err)
	}
}

func (s *Server) syncDocument(writer http.ResponseWriter, request *http.Request) {
	roomID := mux.Vars(request)["room"]
	od, err := s.docs.open(request.Context(), roomID)
	if err != nil {
		s.writeStoreError(writer, err)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	conn, err := upgrader.Upgrade(writer, request, nil)
	if err != nil {
		s.logger.Error("failed to upgrade", "err", err)
		return
	}
	defer conn.Close()

	if err := s.store.TouchRoom(request.Context(), roomID, time.Now()); err != nil {
		s.logger.Warn("failed to record connection", "room", roomID, "err", err)
	}

	od.mu.Lock()
	syncState := automerge.NewSyncState(od.doc)
	od.mu.Unlock()
	if err := wsync.Sync(request.Context(), conn, &wsync.Peer{
		State:    syncState,
		Lock:     &od.mu,
		Interval: s.syncInterval,
		Logger:   s.logger.With("room", roomID),
	}); err != nil {
		s.logger.Error("failed to sync", "room", roomID, "err", err)
	}
}
