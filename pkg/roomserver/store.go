package roomserver

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/astromechza/automerge-docs/pkg/rooms"
)

var ErrRoomExists = errors.New("room already exists")

// Store persists rooms, their access lists, inbox notifications and document snapshots in sqlite.
type Store struct {
	database *sql.DB
}

func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	s := &Store{database: db}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.database.Close()
}

func (s *Store) init() error {
	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS rooms (
			id text not null primary key,
			created_at integer not null,
			last_connection_at integer,
			metadata text not null,
			default_accesses text not null,
			users_accesses text not null,
			snapshot_id text
		)`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			id text not null primary key,
			room_id text not null references rooms(id) on delete cascade,
			content text not null,
			created_at integer not null
		)`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id text not null primary key,
			user_id text not null,
			kind text not null,
			subject_id text not null,
			room_id text,
			activity_data text not null,
			notified_at integer not null,
			read_at integer
		)`,
		`CREATE INDEX IF NOT EXISTS notifications_user ON notifications (user_id, notified_at)`,
	} {
		if _, err := s.database.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create tables: %w", err)
		}
	}
	slog.Info("Ensured initial tables exist")
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRoom(row scanner) (*rooms.Room, error) {
	var (
		r                                  rooms.Room
		createdAt                          int64
		lastConnection                     sql.NullInt64
		metadata, defaultAccesses, userAcc string
	)
	if err := row.Scan(&r.ID, &createdAt, &lastConnection, &metadata, &defaultAccesses, &userAcc); err != nil {
		return nil, err
	}
	r.Type = "room"
	r.CreatedAt = time.Unix(0, createdAt).UTC()
	if lastConnection.Valid {
		t := time.Unix(0, lastConnection.Int64).UTC()
		r.LastConnectionAt = &t
	}
	if err := json.Unmarshal([]byte(metadata), &r.Metadata); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	if err := json.Unmarshal([]byte(defaultAccesses), &r.DefaultAccesses); err != nil {
		return nil, fmt.Errorf("failed to decode default accesses: %w", err)
	}
	if err := json.Unmarshal([]byte(userAcc), &r.UsersAccesses); err != nil {
		return nil, fmt.Errorf("failed to decode users accesses: %w", err)
	}
	if r.UsersAccesses == nil {
		r.UsersAccesses = rooms.AccessMap{}
	}
	return &r, nil
}

const roomColumns = `id, created_at, last_connection_at, metadata, default_accesses, users_accesses`

func (s *Store) CreateRoom(ctx context.Context, req rooms.CreateRoomRequest) (*rooms.Room, error) {
	metadata, err := json.Marshal(req.Metadata)
	if err != nil {
		return nil, err
	}
	if req.DefaultAccesses == nil {
		req.DefaultAccesses = []rooms.Permission{}
	}
	defaultAccesses, err := json.Marshal(req.DefaultAccesses)
	if err != nil {
		return nil, err
	}
	if req.UsersAccesses == nil {
		req.UsersAccesses = rooms.AccessMap{}
	}
	usersAccesses, err := json.Marshal(req.UsersAccesses)
	if err != nil {
		return nil, err
	}
	res, err := s.database.ExecContext(ctx,
		`INSERT OR IGNORE INTO rooms (id, created_at, metadata, default_accesses, users_accesses) VALUES (?, ?, ?, ?, ?)`,
		req.ID, time.Now().UnixNano(), string(metadata), string(defaultAccesses), string(usersAccesses),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert room: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrRoomExists
	}
	return s.GetRoom(ctx, req.ID)
}

func (s *Store) GetRoom(ctx context.Context, id string) (*rooms.Room, error) {
	r, err := scanRoom(s.database.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, rooms.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query room: %w", err)
	}
	return r, nil
}

// GetRooms lists rooms, newest first. A non-empty q.UserID restricts the list to rooms that
// user has an access entry in.
func (s *Store) GetRooms(ctx context.Context, q rooms.ListRoomsQuery) ([]rooms.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms`
	var args []any
	if q.UserID != "" {
		query += ` WHERE EXISTS (SELECT 1 FROM json_each(users_accesses) WHERE key = ?)`
		args = append(args, q.UserID)
	}
	query += ` ORDER BY created_at DESC`
	res, err := s.database.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rooms: %w", err)
	}
	defer func(res *sql.Rows) {
		if err := res.Close(); err != nil {
			slog.Error("failed to close", "err", err)
		}
	}(res)
	out := make([]rooms.Room, 0)
	for res.Next() {
		r, err := scanRoom(res)
		if err != nil {
			return nil, fmt.Errorf("failed to scan: %w", err)
		}
		out = append(out, *r)
	}
	return out, res.Err()
}

// UpdateRoom applies a partial update. Metadata fields that are set replace the stored value;
// access entries are merged and a nil entry removes the user.
func (s *Store) UpdateRoom(ctx context.Context, id string, req rooms.UpdateRoomRequest) (*rooms.Room, error) {
	tx, err := s.database.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to start tx: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			slog.Error("failed to rollback", "err", err)
		}
	}()

	r, err := scanRoom(tx.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, rooms.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query room: %w", err)
	}
	if req.Metadata != nil && req.Metadata.Title != nil {
		r.Metadata.Title = *req.Metadata.Title
	}
	for user, perms := range req.UsersAccesses {
		if perms == nil {
			delete(r.UsersAccesses, user)
		} else {
			r.UsersAccesses[user] = perms
		}
	}
	metadata, err := json.Marshal(r.Metadata)
	if err != nil {
		return nil, err
	}
	usersAccesses, err := json.Marshal(r.UsersAccesses)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE rooms SET metadata = ?, users_accesses = ? WHERE id = ?`,
		string(metadata), string(usersAccesses), id,
	); err != nil {
		return nil, fmt.Errorf("failed to update room: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return r, nil
}

func (s *Store) DeleteRoom(ctx context.Context, id string) error {
	res, err := s.database.ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return rooms.ErrNotFound
	}
	return nil
}

func (s *Store) TouchRoom(ctx context.Context, id string, at time.Time) error {
	if _, err := s.database.ExecContext(ctx, `UPDATE rooms SET last_connection_at = ? WHERE id = ?`, at.UnixNano(), id); err != nil {
		return fmt.Errorf("failed to update last connection: %w", err)
	}
	return nil
}

func (s *Store) AddNotification(ctx context.Context, id string, req rooms.TriggerNotificationRequest) error {
	activity, err := json.Marshal(req.ActivityData)
	if err != nil {
		return fmt.Errorf("failed to encode activity data: %w", err)
	}
	if _, err := s.database.ExecContext(ctx,
		`INSERT INTO notifications (id, user_id, kind, subject_id, room_id, activity_data, notified_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, req.UserID, req.Kind, req.SubjectID, req.RoomID, string(activity), time.Now().UnixNano(),
	); err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

// Notifications returns the user's inbox, newest first.
func (s *Store) Notifications(ctx context.Context, user string) ([]rooms.Notification, error) {
	res, err := s.database.QueryContext(ctx,
		`SELECT id, kind, subject_id, room_id, activity_data, notified_at, read_at FROM notifications WHERE user_id = ? ORDER BY notified_at DESC`,
		user,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer res.Close()
	out := make([]rooms.Notification, 0)
	for res.Next() {
		var (
			n          rooms.Notification
			roomID     sql.NullString
			activity   string
			notifiedAt int64
			readAt     sql.NullInt64
		)
		if err := res.Scan(&n.ID, &n.Kind, &n.SubjectID, &roomID, &activity, &notifiedAt, &readAt); err != nil {
			return nil, fmt.Errorf("failed to scan: %w", err)
		}
		n.RoomID = roomID.String
		n.NotifiedAt = time.Unix(0, notifiedAt).UTC()
		if readAt.Valid {
			t := time.Unix(0, readAt.Int64).UTC()
			n.ReadAt = &t
		}
		if err := json.Unmarshal([]byte(activity), &n.ActivityData); err != nil {
			return nil, fmt.Errorf("failed to decode activity data: %w", err)
		}
		out = append(out, n)
	}
	return out, res.Err()
}

// SaveSnapshot records a new document save for the room and points the room at it.
func (s *Store) SaveSnapshot(ctx context.Context, roomID string, content []byte) (string, error) {
	tx, err := s.database.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to start tx: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			slog.Error("failed to rollback", "err", err)
		}
	}()

	now := time.Now().UnixNano()
	snapshotID := fmt.Sprintf("%s-%d", roomID, now)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO snapshots (id, room_id, content, created_at) VALUES (?, ?, ?, ?)`,
		snapshotID, roomID, base64.StdEncoding.EncodeToString(content), now,
	); err != nil {
		return "", fmt.Errorf("failed to persist snapshot: %w", err)
	}
	if res, err := tx.ExecContext(ctx, `UPDATE rooms SET snapshot_id = ? WHERE id = ?`, snapshotID, roomID); err != nil {
		return "", fmt.Errorf("failed to update room snapshot: %w", err)
	} else if r, err := res.RowsAffected(); err != nil {
		return "", fmt.Errorf("failed to count rows affected by room update: %w", err)
	} else if r == 0 {
		return "", rooms.ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit: %w", err)
	}
	return snapshotID, nil
}

// LatestSnapshot returns the room's latest document save, or nil when nothing was saved yet.
func (s *Store) LatestSnapshot(ctx context.Context, roomID string) ([]byte, error) {
	var rawContent sql.NullString
	if err := s.database.QueryRowContext(ctx,
		`SELECT sn.content FROM rooms r LEFT JOIN snapshots sn ON sn.id = r.snapshot_id WHERE r.id = ?`,
		roomID,
	).Scan(&rawContent); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, rooms.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query snapshot: %w", err)
	}
	if !rawContent.Valid {
		return nil, nil
	}
	raw, err := base64.StdEncoding.DecodeString(rawContent.String)
	if err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return raw, nil
}
