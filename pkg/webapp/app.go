// Package webapp serves the document pages and room actions over HTTP. Callers are identified
// by the X-User-* headers set by the authenticating proxy in front of it.
package webapp

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"

	"github.com/astromechza/automerge-docs/pkg/pagecache"
	"github.com/astromechza/automerge-docs/pkg/rooms"
)

const (
	HeaderUserID     = "X-User-Id"
	HeaderUserEmail  = "X-User-Email"
	HeaderUserName   = "X-User-Name"
	HeaderUserAvatar = "X-User-Avatar"
)

type App struct {
	service *rooms.Service
	cache   *pagecache.Cache
	logger  *slog.Logger
}

type Option func(*App)

func WithLogger(l *slog.Logger) Option {
	return func(a *App) {
		a.logger = l
	}
}

// New serves service. cache must be the revalidator the service was built with so that room
// actions drop the pages they affect.
func New(service *rooms.Service, cache *pagecache.Cache, opts ...Option) *App {
	a := &App{service: service, cache: cache, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func userFromRequest(r *http.Request) rooms.Actor {
	return rooms.Actor{
		ID:     r.Header.Get(HeaderUserID),
		Email:  strings.TrimSpace(r.Header.Get(HeaderUserEmail)),
		Name:   r.Header.Get(HeaderUserName),
		Avatar: r.Header.Get(HeaderUserAvatar),
	}
}

func (a *App) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(func(handler http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			m := httpsnoop.CaptureMetrics(handler, writer, request)
			a.logger.Info("handled", "method", request.Method, "url", request.URL, "duration", m.Duration, "status", m.Code)
		})
	})
	r.Use(requireUser)
	r.Use(a.cache.Middleware(func(r *http.Request) string { return r.Header.Get(HeaderUserEmail) }))

	r.Methods(http.MethodGet).Path("/").HandlerFunc(a.listDocuments)
	r.Methods(http.MethodPost).Path("/documents").HandlerFunc(a.createDocument)
	r.Methods(http.MethodGet).Path("/documents/{room}").HandlerFunc(a.getDocument)
	r.Methods(http.MethodPatch).Path("/documents/{room}").HandlerFunc(a.renameDocument)
	r.Methods(http.MethodDelete).Path("/documents/{room}").HandlerFunc(a.deleteDocument)
	r.Methods(http.MethodPost).Path("/documents/{room}/access").HandlerFunc(a.shareDocument)
	r.Methods(http.MethodDelete).Path("/documents/{room}/access/{email}").HandlerFunc(a.removeCollaborator)
	return r
}

func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if userFromRequest(request).Email == "" {
			writeError(writer, http.StatusUnauthorized, "missing "+HeaderUserEmail)
			return
		}
		next.ServeHTTP(writer, request)
	})
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(writer http.ResponseWriter, status int, message string) {
	writeJSON(writer, status, errorBody{Error: message})
}

func writeJSON(writer http.ResponseWriter, status int, body any) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	if err := json.NewEncoder(writer).Encode(body); err != nil {
		slog.Error("failed to write out", "err", err)
	}
}

// StatusFor maps a room action error onto the response status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, rooms.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, rooms.ErrSelfRemoval):
		return http.StatusConflict
	case errors.Is(err, rooms.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, rooms.ErrInvalid):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

func (a *App) writeActionError(writer http.ResponseWriter, err error) {
	status := StatusFor(err)
	message := err.Error()
	if status == http.StatusBadGateway {
		message = "the collaboration backend failed"
	}
	writeError(writer, status, message)
}

// DocumentSummary is one row of the document list.
type DocumentSummary struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt string `json:"createdAt"`
}

type Collaborator struct {
	Email    string         `json:"email"`
	UserType rooms.UserType `json:"userType"`
}

// DocumentView is the document page.
type DocumentView struct {
	Room          *rooms.Room    `json:"room"`
	CurrentUser   rooms.UserType `json:"currentUserType"`
	Collaborators []Collaborator `json:"collaborators"`
}

func collaborators(room *rooms.Room) []Collaborator {
	out := make([]Collaborator, 0, len(room.UsersAccesses))
	for email, perms := range room.UsersAccesses {
		t := rooms.UserTypeForAccess(perms)
		if email == room.Metadata.Email {
			t = rooms.UserCreator
		}
		out = append(out, Collaborator{Email: email, UserType: t})
	}
	slices.SortFunc(out, func(a, b Collaborator) int {
		// creator first, then by email
		if (a.UserType == rooms.UserCreator) != (b.UserType == rooms.UserCreator) {
			if a.UserType == rooms.UserCreator {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Email, b.Email)
	})
	return out
}

func (a *App) listDocuments(writer http.ResponseWriter, request *http.Request) {
	list, err := a.service.GetDocuments(request.Context(), userFromRequest(request).Email)
	if err != nil {
		a.writeActionError(writer, err)
		return
	}
	out := make([]DocumentSummary, 0, len(list))
	for _, r := range list {
		out = append(out, DocumentSummary{ID: r.ID, Title: r.Metadata.Title, CreatedAt: r.CreatedAt.Format(time.RFC3339)})
	}
	writeJSON(writer, http.StatusOK, map[string]any{"documents": out})
}

func (a *App) createDocument(writer http.ResponseWriter, request *http.Request) {
	user := userFromRequest(request)
	room, err := a.service.CreateDocument(request.Context(), rooms.CreateDocumentParams{UserID: user.ID, Email: user.Email})
	if err != nil {
		a.writeActionError(writer, err)
		return
	}
	writer.Header().Set("Location", rooms.DocumentPath(room.ID))
	writeJSON(writer, http.StatusCreated, room)
}

func (a *App) getDocument(writer http.ResponseWriter, request *http.Request) {
	user := userFromRequest(request)
	room, err := a.service.GetDocument(request.Context(), mux.Vars(request)["room"], user.Email)
	if err != nil {
		a.writeActionError(writer, err)
		return
	}
	view := DocumentView{Room: room, Collaborators: collaborators(room)}
	for _, c := range view.Collaborators {
		if c.Email == user.Email {
			view.CurrentUser = c.UserType
		}
	}
	writeJSON(writer, http.StatusOK, view)
}

func (a *App) renameDocument(writer http.ResponseWriter, request *http.Request) {
	var body struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(request.Body).Decode(&body); err != nil {
		writeError(writer, http.StatusBadRequest, "invalid body")
		return
	}
	title := strings.TrimSpace(body.Title)
	if title == "" {
		title = rooms.DefaultTitle
	}
	room, err := a.service.UpdateDocument(request.Context(), mux.Vars(request)["room"], title)
	if err != nil {
		a.writeActionError(writer, err)
		return
	}
	// the title also shows up in every collaborator's document list
	a.cache.RevalidatePath(rooms.HomePath)
	writeJSON(writer, http.StatusOK, room)
}

func (a *App) shareDocument(writer http.ResponseWriter, request *http.Request) {
	var body struct {
		Email    string         `json:"email"`
		UserType rooms.UserType `json:"userType"`
	}
	if err := json.NewDecoder(request.Body).Decode(&body); err != nil || strings.TrimSpace(body.Email) == "" {
		writeError(writer, http.StatusBadRequest, "invalid body")
		return
	}
	room, err := a.service.UpdateDocumentAccess(request.Context(), rooms.ShareDocumentParams{
		RoomID:    mux.Vars(request)["room"],
		Email:     strings.TrimSpace(body.Email),
		UserType:  body.UserType,
		UpdatedBy: userFromRequest(request),
	})
	if err != nil {
		a.writeActionError(writer, err)
		return
	}
	a.cache.RevalidatePath(rooms.HomePath)
	writeJSON(writer, http.StatusOK, room)
}

func (a *App) removeCollaborator(writer http.ResponseWriter, request *http.Request) {
	vars := mux.Vars(request)
	room, err := a.service.RemoveCollaborator(request.Context(), vars["room"], vars["email"])
	if err != nil {
		a.writeActionError(writer, err)
		return
	}
	a.cache.RevalidatePath(rooms.HomePath)
	writeJSON(writer, http.StatusOK, room)
}

func (a *App) deleteDocument(writer http.ResponseWriter, request *http.Request) {
	roomID := mux.Vars(request)["room"]
	nav, err := a.service.DeleteDocument(request.Context(), roomID)
	if err != nil {
		a.writeActionError(writer, err)
		return
	}
	a.cache.RevalidatePath(rooms.DocumentPath(roomID))
	http.Redirect(writer, request, nav.RedirectTo, http.StatusSeeOther)
}
