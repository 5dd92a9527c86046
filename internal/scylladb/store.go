// Package scylladb is the prepared-statement facade over the wide-column
// store. gocql prepares and caches statements by query string, so every
// method below runs as a prepared execution after its first use.
package scylladb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"

	"github.com/nexuschat/nexusd/internal/protocol"
)

// ErrNotFound reports a lookup that matched no row.
var ErrNotFound = errors.New("scylladb: not found")

// SessionMeta describes the device a token was issued to.
type SessionMeta struct {
	Location   string
	DeviceName string
	DeviceType string
	DeviceOS   string
}

// Store wraps one gocql session.
type Store struct {
	session *gocql.Session
}

// Connect opens a session to the cluster node at uri.
func Connect(uri string) (*Store, error) {
	cluster := gocql.NewCluster(uri)
	cluster.Timeout = 10 * time.Second

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("connect to scylla at %s: %w", uri, err)
	}
	return &Store{session: session}, nil
}

// Close releases the underlying session.
func (s *Store) Close() {
	s.session.Close()
}

// EnsureSchema creates the keyspace and all tables if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if err := s.session.Query(createKeyspace).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("create keyspace: %w", err)
	}
	for _, stmt := range schemaStatements {
		if err := s.session.Query(stmt).WithContext(ctx).Exec(); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	return nil
}

// InsertMessage persists one non-secret message.
func (s *Store) InsertMessage(ctx context.Context, m *protocol.Message) error {
	const stmt = `INSERT INTO nexus.messages
		(uuid, text, nonce, filename, filepath, sender, receiver, sent, read, edited, msg_type, secret, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	nonce, err := m.Nonce.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode nonce: %w", err)
	}
	// MarshalJSON wraps the csv string in quotes; store it bare.
	nonceStr := string(nonce[1 : len(nonce)-1])

	err = s.session.Query(stmt,
		cqlUUID(m.UUID),
		m.Content.Text,
		nonceStr,
		"",
		"",
		cqlUUID(m.Sides.Sender),
		cqlUUID(m.Sides.Receiver),
		m.Status.Sent,
		m.Status.Read,
		m.Status.Edited,
		int8(m.MessageType),
		m.Secret,
		m.CreatedTime(),
	).WithContext(ctx).Exec()
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// InsertCall records the start of a call: duration 0, not accepted.
func (s *Store) InsertCall(ctx context.Context, c *protocol.MediaCall) error {
	const stmt = `INSERT INTO nexus.calls
		(uuid, sender, receiver, duration, accepted, secret, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	err := s.session.Query(stmt,
		cqlUUID(c.UUID),
		cqlUUID(c.Sides.Sender),
		cqlUUID(c.Sides.Receiver),
		int64(0),
		false,
		c.Secret,
		c.CreatedTime(),
	).WithContext(ctx).Exec()
	if err != nil {
		return fmt.Errorf("insert call: %w", err)
	}
	return nil
}

// UpdateCall conditionally updates duration and accepted. Returns false
// without error when the row does not exist, which callers treat as a
// no-op (an End can race a Start that was never persisted).
func (s *Store) UpdateCall(ctx context.Context, c *protocol.MediaCall) (bool, error) {
	const stmt = `UPDATE nexus.calls SET duration = ?, accepted = ?
		WHERE uuid = ? AND created_at = ? IF EXISTS`

	applied, err := s.session.Query(stmt,
		c.Duration(),
		c.Accepted,
		cqlUUID(c.UUID),
		c.CreatedTime(),
	).WithContext(ctx).MapScanCAS(map[string]interface{}{})
	if err != nil {
		return false, fmt.Errorf("update call: %w", err)
	}
	return applied, nil
}

// InsertMedia records metadata for a stored media object.
func (s *Store) InsertMedia(ctx context.Context, f *protocol.MediaFile, name, path string) error {
	const stmt = `INSERT INTO nexus.media
		(uuid, name, path, type, sender, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	err := s.session.Query(stmt,
		cqlUUID(f.UUID),
		name,
		path,
		int8(f.MediaType),
		cqlUUID(f.Sender),
		f.CreatedTime(),
	).WithContext(ctx).Exec()
	if err != nil {
		return fmt.Errorf("insert media: %w", err)
	}
	return nil
}

// SelectUserByUUID fetches one user by primary identity.
func (s *Store) SelectUserByUUID(ctx context.Context, id uuid.UUID) (protocol.User, error) {
	const stmt = `SELECT uuid, username, password, role, public_key, created_at
		FROM nexus.users WHERE uuid = ?`
	return s.scanUser(s.session.Query(stmt, cqlUUID(id)).WithContext(ctx))
}

// SelectUserByUsername fetches one user by username.
func (s *Store) SelectUserByUsername(ctx context.Context, username string) (protocol.User, error) {
	const stmt = `SELECT uuid, username, password, role, public_key, created_at
		FROM nexus.users WHERE username = ? ALLOW FILTERING`
	return s.scanUser(s.session.Query(stmt, username).WithContext(ctx))
}

func (s *Store) scanUser(q *gocql.Query) (protocol.User, error) {
	var (
		u         protocol.User
		id        gocql.UUID
		role      int8
		createdAt time.Time
	)
	if err := q.Scan(&id, &u.Username, &u.Password, &role, &u.PublicKey, &createdAt); err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return u, ErrNotFound
		}
		return u, fmt.Errorf("select user: %w", err)
	}
	u.UUID = uuid.UUID(id)
	u.Role = protocol.Role(role)
	u.CreatedAt = createdAt.Unix()
	return u, nil
}

// ListUsers returns all users.
func (s *Store) ListUsers(ctx context.Context) ([]protocol.User, error) {
	const stmt = `SELECT uuid, username, password, role, public_key, created_at FROM nexus.users`

	iter := s.session.Query(stmt).WithContext(ctx).Iter()
	var (
		users     []protocol.User
		id        gocql.UUID
		username  string
		password  string
		role      int8
		publicKey string
		createdAt time.Time
	)
	for iter.Scan(&id, &username, &password, &role, &publicKey, &createdAt) {
		users = append(users, protocol.User{
			UUID:      uuid.UUID(id),
			Username:  username,
			Password:  password,
			Role:      protocol.Role(role),
			PublicKey: publicKey,
			CreatedAt: createdAt.Unix(),
		})
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// CreateUser inserts the user row and its secret-key row in one logged
// batch.
func (s *Store) CreateUser(ctx context.Context, u *protocol.User, privateKey []byte) error {
	batch := s.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(
		`INSERT INTO nexus.users (uuid, username, password, role, public_key, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		cqlUUID(u.UUID), u.Username, u.Password, int8(u.Role), u.PublicKey, time.Unix(u.CreatedAt, 0),
	)
	batch.Query(
		`INSERT INTO nexus.secret_keys (user, private_key) VALUES (?, ?)`,
		cqlUUID(u.UUID), privateKey,
	)
	if err := s.session.ExecuteBatch(batch); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// UpdateUsername renames a user. The username is part of the row key, so
// the rename is a delete followed by a reinsert of the same row. The two
// writes run separately: batched together they would share a timestamp
// and the tombstone would shadow the insert.
func (s *Store) UpdateUsername(ctx context.Context, id uuid.UUID, username string) error {
	u, err := s.SelectUserByUUID(ctx, id)
	if err != nil {
		return err
	}

	const del = `DELETE FROM nexus.users WHERE uuid = ? AND username = ?`
	if err := s.session.Query(del, cqlUUID(id), u.Username).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("update user: %w", err)
	}

	const ins = `INSERT INTO nexus.users (uuid, username, password, role, public_key, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	err = s.session.Query(ins,
		cqlUUID(id), username, u.Password, int8(u.Role), u.PublicKey, time.Unix(u.CreatedAt, 0),
	).WithContext(ctx).Exec()
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

// DeleteUser removes a user row.
func (s *Store) DeleteUser(ctx context.Context, id uuid.UUID) error {
	const stmt = `DELETE FROM nexus.users WHERE uuid = ?`
	if err := s.session.Query(stmt, cqlUUID(id)).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// SetPublicKey stores a user's public key. The full row key includes the
// username, so it is resolved first.
func (s *Store) SetPublicKey(ctx context.Context, id uuid.UUID, publicKey string) error {
	u, err := s.SelectUserByUUID(ctx, id)
	if err != nil {
		return err
	}

	const stmt = `UPDATE nexus.users SET public_key = ? WHERE uuid = ? AND username = ?`
	if err := s.session.Query(stmt, publicKey, cqlUUID(id), u.Username).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("set public key: %w", err)
	}
	return nil
}

// SelectUUIDByJWT resolves a live token to its user.
func (s *Store) SelectUUIDByJWT(ctx context.Context, token string) (uuid.UUID, error) {
	const stmt = `SELECT user FROM nexus.sessions WHERE jwt = ?`

	var id gocql.UUID
	if err := s.session.Query(stmt, token).WithContext(ctx).Scan(&id); err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return uuid.Nil, ErrNotFound
		}
		return uuid.Nil, fmt.Errorf("select session: %w", err)
	}
	return uuid.UUID(id), nil
}

// InsertSession records an issued token.
func (s *Store) InsertSession(ctx context.Context, token string, user uuid.UUID, meta SessionMeta) error {
	const stmt = `INSERT INTO nexus.sessions
		(jwt, user, location, device_name, device_type, device_os, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	err := s.session.Query(stmt,
		token,
		cqlUUID(user),
		meta.Location,
		meta.DeviceName,
		meta.DeviceType,
		meta.DeviceOS,
		time.Now(),
	).WithContext(ctx).Exec()
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// DeleteSessionByJWT revokes a token.
func (s *Store) DeleteSessionByJWT(ctx context.Context, token string) error {
	const stmt = `DELETE FROM nexus.sessions WHERE jwt = ?`
	if err := s.session.Query(stmt, token).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func cqlUUID(u uuid.UUID) gocql.UUID {
	return gocql.UUID(u)
}
