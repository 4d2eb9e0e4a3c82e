package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"chatrelay/internal/app/db"
	"chatrelay/internal/app/user"
)

// Store executes queries against the PostgreSQL pool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// --- Users ---

// CreateUser inserts a new user account. A duplicate username returns
// ErrUsernameTaken.
func (s *Store) CreateUser(ctx context.Context, username, passwordHash string) (user.User, error) {
	var u user.User
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (username, password_hash) VALUES ($1, $2)
		 RETURNING id, username, created_at`,
		username, passwordHash,
	).Scan(&u.ID, &u.Username, &u.CreatedAt)

	if err != nil {
		if db.IsUniqueViolation(err) {
			return user.User{}, ErrUsernameTaken
		}
		return user.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// ErrUsernameTaken reports a registration conflict on the username.
var ErrUsernameTaken = errors.New("store: username already taken")

// UserByID resolves a user identity by id.
func (s *Store) UserByID(ctx context.Context, id int64) (user.User, error) {
	var u user.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, created_at FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Username, &u.CreatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, ErrNotFound
		}
		return user.User{}, fmt.Errorf("user by id: %w", err)
	}
	return u, nil
}

// CredentialsByUsername fetches the identity and password hash for a login check.
func (s *Store) CredentialsByUsername(ctx context.Context, username string) (Credentials, error) {
	var c Credentials
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE username = $1`, username,
	).Scan(&c.User.ID, &c.User.Username, &c.PasswordHash, &c.User.CreatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Credentials{}, ErrNotFound
		}
		return Credentials{}, fmt.Errorf("credentials by username: %w", err)
	}
	return c, nil
}

// SearchUsers finds up to limit users whose username contains the query,
// case-insensitively, excluding the searching user.
func (s *Store) SearchUsers(ctx context.Context, query string, excludeID int64, limit int) ([]user.User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, username, created_at FROM users
		 WHERE username ILIKE '%' || $1 || '%' AND id <> $2
		 ORDER BY username
		 LIMIT $3`,
		query, excludeID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	defer rows.Close()

	return scanUsers(rows)
}

// --- Rooms ---

// CreateRoom inserts a room and auto-joins the creator in one transaction.
// inviteCode must be nil for non-group rooms.
func (s *Store) CreateRoom(ctx context.Context, name string, isGroup bool, inviteCode *string, creatorID int64) (Room, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Room{}, fmt.Errorf("create room: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var room Room
	err = tx.QueryRow(ctx,
		`INSERT INTO chat_rooms (name, is_group, invite_code) VALUES ($1, $2, $3)
		 RETURNING id, name, is_group, invite_code, created_at, updated_at`,
		name, isGroup, inviteCode,
	).Scan(&room.ID, &room.Name, &room.IsGroup, &room.InviteCode, &room.CreatedAt, &room.UpdatedAt)
	if err != nil {
		return Room{}, fmt.Errorf("create room: insert: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO chat_room_participants (user_id, room_id) VALUES ($1, $2)`,
		creatorID, room.ID,
	); err != nil {
		return Room{}, fmt.Errorf("create room: creator membership: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Room{}, fmt.Errorf("create room: commit: %w", err)
	}
	return room, nil
}

// RoomByID fetches a room by id.
func (s *Store) RoomByID(ctx context.Context, id int64) (Room, error) {
	return s.roomBy(ctx, `WHERE id = $1`, id)
}

// RoomByInviteCode resolves an invite code to its group room.
func (s *Store) RoomByInviteCode(ctx context.Context, code string) (Room, error) {
	return s.roomBy(ctx, `WHERE invite_code = $1`, code)
}

func (s *Store) roomBy(ctx context.Context, where string, arg any) (Room, error) {
	var room Room
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, is_group, invite_code, created_at, updated_at FROM chat_rooms `+where,
		arg,
	).Scan(&room.ID, &room.Name, &room.IsGroup, &room.InviteCode, &room.CreatedAt, &room.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Room{}, ErrNotFound
		}
		return Room{}, fmt.Errorf("room lookup: %w", err)
	}
	return room, nil
}

// RoomsForUser lists all rooms the user belongs to, most recently updated
// first, each with its member list and latest message.
func (s *Store) RoomsForUser(ctx context.Context, userID int64) ([]RoomSummary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT r.id, r.name, r.is_group, r.invite_code, r.created_at, r.updated_at
		 FROM chat_rooms r
		 JOIN chat_room_participants p ON p.room_id = r.id
		 WHERE p.user_id = $1
		 ORDER BY r.updated_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("rooms for user: %w", err)
	}
	defer rows.Close()

	summaries := make([]RoomSummary, 0)
	for rows.Next() {
		var room Room
		if err := rows.Scan(&room.ID, &room.Name, &room.IsGroup, &room.InviteCode, &room.CreatedAt, &room.UpdatedAt); err != nil {
			return nil, fmt.Errorf("rooms for user: scan: %w", err)
		}
		summaries = append(summaries, RoomSummary{Room: room})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rooms for user: rows: %w", err)
	}

	for i := range summaries {
		members, err := s.RoomMembers(ctx, summaries[i].ID)
		if err != nil {
			return nil, err
		}
		summaries[i].Participants = members

		last, err := s.lastMessage(ctx, summaries[i].ID)
		if err != nil {
			return nil, err
		}
		summaries[i].LastMessage = last
	}

	return summaries, nil
}

// --- Membership ---

// IsRoomMember answers whether the user currently belongs to the room.
// The result is a point-in-time snapshot; callers re-check on every
// membership-gated operation instead of caching it.
func (s *Store) IsRoomMember(ctx context.Context, userID, roomID int64) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM chat_room_participants WHERE user_id = $1 AND room_id = $2
		 )`,
		userID, roomID,
	).Scan(&exists)

	if err != nil {
		return false, fmt.Errorf("is room member: %w", err)
	}
	return exists, nil
}

// RoomMembers lists the identities of all members of a room.
func (s *Store) RoomMembers(ctx context.Context, roomID int64) ([]user.User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT u.id, u.username, u.created_at
		 FROM users u
		 JOIN chat_room_participants p ON p.user_id = u.id
		 WHERE p.room_id = $1
		 ORDER BY p.joined_at`,
		roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("room members: %w", err)
	}
	defer rows.Close()

	return scanUsers(rows)
}

// AddParticipant records a (user, room) membership. Adding an existing member
// is a no-op thanks to the unique pair constraint, keeping redemption and
// add-user paths idempotent. Returns true if a new membership was created.
func (s *Store) AddParticipant(ctx context.Context, userID, roomID int64) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO chat_room_participants (user_id, room_id) VALUES ($1, $2)
		 ON CONFLICT (user_id, room_id) DO NOTHING`,
		userID, roomID,
	)
	if err != nil {
		return false, fmt.Errorf("add participant: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// FindPrivateRoom returns the existing private room between the unordered
// pair (a, b), or ErrNotFound. Private rooms hold exactly two members, so
// matching both participants identifies the pair.
func (s *Store) FindPrivateRoom(ctx context.Context, a, b int64) (Room, error) {
	var room Room
	err := s.pool.QueryRow(ctx,
		`SELECT r.id, r.name, r.is_group, r.invite_code, r.created_at, r.updated_at
		 FROM chat_rooms r
		 JOIN chat_room_participants p1 ON p1.room_id = r.id AND p1.user_id = $1
		 JOIN chat_room_participants p2 ON p2.room_id = r.id AND p2.user_id = $2
		 WHERE r.is_group = FALSE
		 LIMIT 1`,
		a, b,
	).Scan(&room.ID, &room.Name, &room.IsGroup, &room.InviteCode, &room.CreatedAt, &room.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Room{}, ErrNotFound
		}
		return Room{}, fmt.Errorf("find private room: %w", err)
	}
	return room, nil
}

// CreatePrivateRoom creates a private room holding exactly the two users.
func (s *Store) CreatePrivateRoom(ctx context.Context, a, b int64) (Room, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Room{}, fmt.Errorf("create private room: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var room Room
	err = tx.QueryRow(ctx,
		`INSERT INTO chat_rooms (name, is_group) VALUES ('', FALSE)
		 RETURNING id, name, is_group, invite_code, created_at, updated_at`,
	).Scan(&room.ID, &room.Name, &room.IsGroup, &room.InviteCode, &room.CreatedAt, &room.UpdatedAt)
	if err != nil {
		return Room{}, fmt.Errorf("create private room: insert: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO chat_room_participants (user_id, room_id) VALUES ($1, $3), ($2, $3)`,
		a, b, room.ID,
	); err != nil {
		return Room{}, fmt.Errorf("create private room: memberships: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Room{}, fmt.Errorf("create private room: commit: %w", err)
	}
	return room, nil
}

// --- Messages ---

// CreateMessage persists a message and returns its canonical form with the
// store-issued id and timestamp. The room's updated_at is bumped in the same
// transaction so room lists sort by recent activity.
func (s *Store) CreateMessage(ctx context.Context, text string, userID, roomID int64) (Message, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Message{}, fmt.Errorf("create message: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var m Message
	err = tx.QueryRow(ctx,
		`INSERT INTO messages (text, user_id, room_id) VALUES ($1, $2, $3)
		 RETURNING id, text, user_id, room_id, created_at`,
		text, userID, roomID,
	).Scan(&m.ID, &m.Text, &m.UserID, &m.RoomID, &m.CreatedAt)
	if err != nil {
		return Message{}, fmt.Errorf("create message: insert: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE chat_rooms SET updated_at = now() WHERE id = $1`, roomID,
	); err != nil {
		return Message{}, fmt.Errorf("create message: touch room: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Message{}, fmt.Errorf("create message: commit: %w", err)
	}
	return m, nil
}

// MessagesForRoom lists a room's messages in creation order with their authors.
func (s *Store) MessagesForRoom(ctx context.Context, roomID int64, limit, offset int) ([]Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT m.id, m.text, m.user_id, m.room_id, m.created_at, u.id, u.username, u.created_at
		 FROM messages m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.room_id = $1
		 ORDER BY m.created_at ASC, m.id ASC
		 LIMIT $2 OFFSET $3`,
		roomID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("messages for room: %w", err)
	}
	defer rows.Close()

	messages := make([]Message, 0)
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Text, &m.UserID, &m.RoomID, &m.CreatedAt,
			&m.Author.ID, &m.Author.Username, &m.Author.CreatedAt); err != nil {
			return nil, fmt.Errorf("messages for room: scan: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("messages for room: rows: %w", err)
	}
	return messages, nil
}

func (s *Store) lastMessage(ctx context.Context, roomID int64) (*Message, error) {
	var m Message
	err := s.pool.QueryRow(ctx,
		`SELECT m.id, m.text, m.user_id, m.room_id, m.created_at, u.id, u.username, u.created_at
		 FROM messages m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.room_id = $1
		 ORDER BY m.created_at DESC, m.id DESC
		 LIMIT 1`,
		roomID,
	).Scan(&m.ID, &m.Text, &m.UserID, &m.RoomID, &m.CreatedAt,
		&m.Author.ID, &m.Author.Username, &m.Author.CreatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("last message: %w", err)
	}
	return &m, nil
}

func scanUsers(rows pgx.Rows) ([]user.User, error) {
	users := make([]user.User, 0)
	for rows.Next() {
		var u user.User
		if err := rows.Scan(&u.ID, &u.Username, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("user rows: %w", err)
	}
	return users, nil
}
