package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	_ "github.com/ncruces/go-sqlite3/driver"

	"github.com/flowKKo/chat-central-sub002/internal/model"
)

// SQLiteStore is the SQLite-backed implementation of Store. Thread-safe
// for concurrent callers (dispatch handlers, the batch orchestrator).
type SQLiteStore struct {
	mu sync.RWMutex
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id               TEXT PRIMARY KEY,
	platform         TEXT NOT NULL,
	original_id      TEXT NOT NULL,
	title            TEXT NOT NULL DEFAULT '',
	preview          TEXT NOT NULL DEFAULT '',
	summary          TEXT NOT NULL DEFAULT '',
	url              TEXT NOT NULL DEFAULT '',
	created_at       INTEGER NOT NULL,
	updated_at       INTEGER NOT NULL,
	synced_at        INTEGER NOT NULL DEFAULT 0,
	message_count    INTEGER NOT NULL DEFAULT 0,
	tags             TEXT NOT NULL DEFAULT '[]',
	is_favorite      INTEGER NOT NULL DEFAULT 0,
	favorite_at      INTEGER,
	detail_status    TEXT NOT NULL DEFAULT 'none',
	detail_synced_at INTEGER
);

CREATE INDEX IF NOT EXISTS idx_conversations_platform_updated ON conversations(platform, updated_at);
CREATE INDEX IF NOT EXISTS idx_conversations_favorite ON conversations(is_favorite, favorite_at);
CREATE INDEX IF NOT EXISTS idx_conversations_updated ON conversations(updated_at);

CREATE TABLE IF NOT EXISTS messages (
	conversation_id TEXT NOT NULL,
	id              TEXT NOT NULL,
	role            TEXT NOT NULL,
	content         TEXT NOT NULL,
	created_at      INTEGER NOT NULL,
	PRIMARY KEY (conversation_id, id)
);

CREATE INDEX IF NOT EXISTS idx_messages_conv_created ON messages(conversation_id, created_at);

CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// NewSQLiteStore opens an in-memory store, useful for tests.
func NewSQLiteStore() (*SQLiteStore, error) {
	return NewSQLiteStoreWithDSN(":memory:")
}

// NewSQLiteStoreWithDSN opens (creating if needed) a persistent store at
// dsn, or an in-memory one for ":memory:".
func NewSQLiteStoreWithDSN(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, model.NewError(model.KindStore, "open database", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, model.NewError(model.KindStore, "create schema", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func storeErr(msg string, err error) error {
	if err == nil {
		return nil
	}
	return model.NewError(model.KindStore, msg, err)
}

// --- conversations ---

func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRowContext(ctx, `
		SELECT id, platform, original_id, title, preview, summary, url,
		       created_at, updated_at, synced_at, message_count, tags,
		       is_favorite, favorite_at, detail_status, detail_synced_at
		FROM conversations WHERE id = ?`, id)
	c, err := scanConversation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("get conversation", err)
	}
	return c, nil
}

func scanConversation(row *sql.Row) (*model.Conversation, error) {
	var c model.Conversation
	var tagsJSON string
	var isFavorite int
	var favoriteAt, detailSyncedAt sql.NullInt64
	err := row.Scan(&c.ID, &c.Platform, &c.OriginalID, &c.Title, &c.Preview, &c.Summary, &c.URL,
		&c.CreatedAt, &c.UpdatedAt, &c.SyncedAt, &c.MessageCount, &tagsJSON,
		&isFavorite, &favoriteAt, &c.DetailStatus, &detailSyncedAt)
	if err != nil {
		return nil, err
	}
	c.IsFavorite = isFavorite != 0
	if favoriteAt.Valid {
		v := favoriteAt.Int64
		c.FavoriteAt = &v
	}
	if detailSyncedAt.Valid {
		v := detailSyncedAt.Int64
		c.DetailSyncedAt = &v
	}
	if err := json.Unmarshal([]byte(tagsJSON), &c.Tags); err != nil {
		c.Tags = nil
	}
	return &c, nil
}

func scanConversationRows(rows *sql.Rows) (model.Conversation, error) {
	var c model.Conversation
	var tagsJSON string
	var isFavorite int
	var favoriteAt, detailSyncedAt sql.NullInt64
	err := rows.Scan(&c.ID, &c.Platform, &c.OriginalID, &c.Title, &c.Preview, &c.Summary, &c.URL,
		&c.CreatedAt, &c.UpdatedAt, &c.SyncedAt, &c.MessageCount, &tagsJSON,
		&isFavorite, &favoriteAt, &c.DetailStatus, &detailSyncedAt)
	if err != nil {
		return c, err
	}
	c.IsFavorite = isFavorite != 0
	if favoriteAt.Valid {
		v := favoriteAt.Int64
		c.FavoriteAt = &v
	}
	if detailSyncedAt.Valid {
		v := detailSyncedAt.Int64
		c.DetailSyncedAt = &v
	}
	if err := json.Unmarshal([]byte(tagsJSON), &c.Tags); err != nil {
		c.Tags = nil
	}
	return c, nil
}

func (s *SQLiteStore) upsertConversationTx(tx *sql.Tx, c model.Conversation) error {
	if !c.ValidID() {
		return model.NewError(model.KindValidation, fmt.Sprintf("conversation id %q does not match platform_originalId", c.ID), nil)
	}
	tagsJSON, err := json.Marshal(model.CanonicalizeTags(c.Tags))
	if err != nil {
		return err
	}
	_, err = tx.Exec(`
		INSERT INTO conversations (id, platform, original_id, title, preview, summary, url,
			created_at, updated_at, synced_at, message_count, tags, is_favorite, favorite_at,
			detail_status, detail_synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			preview = excluded.preview,
			summary = excluded.summary,
			url = excluded.url,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			synced_at = excluded.synced_at,
			message_count = excluded.message_count,
			tags = excluded.tags,
			is_favorite = excluded.is_favorite,
			favorite_at = excluded.favorite_at,
			detail_status = excluded.detail_status,
			detail_synced_at = excluded.detail_synced_at
	`, c.ID, c.Platform, c.OriginalID, c.Title, c.Preview, c.Summary, c.URL,
		c.CreatedAt, c.UpdatedAt, c.SyncedAt, c.MessageCount, string(tagsJSON),
		boolToInt(c.IsFavorite), c.FavoriteAt, c.DetailStatus, c.DetailSyncedAt)
	return err
}

func (s *SQLiteStore) UpsertConversation(ctx context.Context, c model.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin tx", err)
	}
	if err := s.upsertConversationTx(tx, c); err != nil {
		tx.Rollback()
		return storeErr("upsert conversation", err)
	}
	if err := tx.Commit(); err != nil {
		return storeErr("commit", err)
	}
	return nil
}

func (s *SQLiteStore) UpsertConversations(ctx context.Context, cs []model.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin tx", err)
	}
	for _, c := range cs {
		if err := s.upsertConversationTx(tx, c); err != nil {
			tx.Rollback()
			return storeErr("upsert conversations batch", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return storeErr("commit", err)
	}
	return nil
}

func (s *SQLiteStore) ListConversations(ctx context.Context, filter Filter, order Order, page Page) (ListResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where := []string{"1=1"}
	args := []interface{}{}
	if filter.Platform != nil {
		where = append(where, "platform = ?")
		args = append(args, *filter.Platform)
	}
	if filter.FavoriteOnly {
		where = append(where, "is_favorite = 1")
	}
	if filter.UpdatedAt != nil {
		if filter.UpdatedAt.After != nil {
			where = append(where, "updated_at >= ?")
			args = append(args, *filter.UpdatedAt.After)
		}
		if filter.UpdatedAt.Before != nil {
			where = append(where, "updated_at <= ?")
			args = append(args, *filter.UpdatedAt.Before)
		}
	}
	if filter.Tag != nil {
		where = append(where, "tags LIKE ?")
		args = append(args, "%\""+*filter.Tag+"\"%")
	}

	orderBy := "updated_at DESC"
	if order == OrderFavoriteDesc {
		orderBy = "favorite_at DESC"
	}

	limit := page.Limit + 1
	query := fmt.Sprintf(`
		SELECT id, platform, original_id, title, preview, summary, url,
		       created_at, updated_at, synced_at, message_count, tags,
		       is_favorite, favorite_at, detail_status, detail_synced_at
		FROM conversations WHERE %s ORDER BY %s LIMIT ? OFFSET ?`,
		strings.Join(where, " AND "), orderBy)
	args = append(args, limit, page.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return ListResult{}, storeErr("list conversations", err)
	}
	defer rows.Close()

	var out []model.Conversation
	for rows.Next() {
		c, err := scanConversationRows(rows)
		if err != nil {
			return ListResult{}, storeErr("scan conversation", err)
		}
		out = append(out, c)
	}
	hasMore := len(out) > page.Limit
	if hasMore {
		out = out[:page.Limit]
	}
	return ListResult{Conversations: out, HasMore: hasMore}, nil
}

func (s *SQLiteStore) CountConversations(ctx context.Context, filter Filter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where := []string{"1=1"}
	args := []interface{}{}
	if filter.Platform != nil {
		where = append(where, "platform = ?")
		args = append(args, *filter.Platform)
	}
	if filter.FavoriteOnly {
		where = append(where, "is_favorite = 1")
	}
	if filter.UpdatedAt != nil {
		if filter.UpdatedAt.After != nil {
			where = append(where, "updated_at >= ?")
			args = append(args, *filter.UpdatedAt.After)
		}
		if filter.UpdatedAt.Before != nil {
			where = append(where, "updated_at <= ?")
			args = append(args, *filter.UpdatedAt.Before)
		}
	}
	if filter.Tag != nil {
		where = append(where, "tags LIKE ?")
		args = append(args, "%\""+*filter.Tag+"\"%")
	}

	query := fmt.Sprintf(`SELECT COUNT(*) FROM conversations WHERE %s`, strings.Join(where, " AND "))
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, storeErr("count conversations", err)
	}
	return n, nil
}

// --- messages ---

func (s *SQLiteStore) GetMessagesByConversation(ctx context.Context, conversationID string) ([]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `
		SELECT conversation_id, id, role, content, created_at
		FROM messages WHERE conversation_id = ? ORDER BY created_at ASC`, conversationID)
	if err != nil {
		return nil, storeErr("get messages by conversation", err)
	}
	defer rows.Close()
	var out []model.Message
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ConversationID, &m.ID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, storeErr("scan message", err)
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *SQLiteStore) GetMessagesByIDs(ctx context.Context, conversationID string, ids []string) (map[string]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]model.Message, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, conversationID)
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id)
	}
	query := fmt.Sprintf(`SELECT conversation_id, id, role, content, created_at FROM messages
		WHERE conversation_id = ? AND id IN (%s)`, strings.Join(placeholders, ","))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("get messages by ids", err)
	}
	defer rows.Close()
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ConversationID, &m.ID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, storeErr("scan message", err)
		}
		out[m.ID] = m
	}
	return out, nil
}

func (s *SQLiteStore) ExistingMessageIDs(ctx context.Context, conversationID string, ids []string) (map[string]bool, error) {
	msgs, err := s.GetMessagesByIDs(ctx, conversationID, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(msgs))
	for id := range msgs {
		out[id] = true
	}
	return out, nil
}

func (s *SQLiteStore) UpsertMessages(ctx context.Context, msgs []model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin tx", err)
	}
	for _, m := range msgs {
		_, err := tx.Exec(`
			INSERT INTO messages (conversation_id, id, role, content, created_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(conversation_id, id) DO UPDATE SET
				role = excluded.role,
				content = excluded.content,
				created_at = excluded.created_at
		`, m.ConversationID, m.ID, m.Role, m.Content, m.CreatedAt)
		if err != nil {
			tx.Rollback()
			return storeErr("upsert messages batch", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return storeErr("commit", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteMessagesByConversation(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, conversationID)
	return storeErr("delete messages by conversation", err)
}

// --- bulk clears ---

func (s *SQLiteStore) ClearPlatform(ctx context.Context, p model.Platform) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin tx", err)
	}
	if _, err := tx.Exec(`
		DELETE FROM messages WHERE conversation_id IN (SELECT id FROM conversations WHERE platform = ?)
	`, p); err != nil {
		tx.Rollback()
		return storeErr("clear platform messages", err)
	}
	if _, err := tx.Exec(`DELETE FROM conversations WHERE platform = ?`, p); err != nil {
		tx.Rollback()
		return storeErr("clear platform conversations", err)
	}
	if err := tx.Commit(); err != nil {
		return storeErr("commit", err)
	}
	return nil
}

func (s *SQLiteStore) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin tx", err)
	}
	if _, err := tx.Exec(`DELETE FROM messages`); err != nil {
		tx.Rollback()
		return storeErr("clear all messages", err)
	}
	if _, err := tx.Exec(`DELETE FROM conversations`); err != nil {
		tx.Rollback()
		return storeErr("clear all conversations", err)
	}
	if err := tx.Commit(); err != nil {
		return storeErr("commit", err)
	}
	return nil
}

// --- tags ---

func (s *SQLiteStore) AllTags(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `SELECT tags FROM conversations`)
	if err != nil {
		return nil, storeErr("all tags", err)
	}
	defer rows.Close()
	seen := map[string]struct{}{}
	for rows.Next() {
		var tagsJSON string
		if err := rows.Scan(&tagsJSON); err != nil {
			return nil, storeErr("scan tags", err)
		}
		var tags []string
		if err := json.Unmarshal([]byte(tagsJSON), &tags); err != nil {
			continue
		}
		for _, t := range tags {
			seen[t] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	return model.SortTagsStable(out), nil
}

// --- kv ---

func (s *SQLiteStore) GetKV(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, storeErr("get kv", err)
	}
	return value, true, nil
}

func (s *SQLiteStore) SetKV(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return storeErr("set kv", err)
}

// --- stats ---

func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st Stats
	st.ByPlatform = make(map[model.Platform]int)

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations`).Scan(&st.TotalConversations); err != nil {
		return st, storeErr("stats: count conversations", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&st.TotalMessages); err != nil {
		return st, storeErr("stats: count messages", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT platform, COUNT(*) FROM conversations GROUP BY platform`)
	if err != nil {
		return st, storeErr("stats: by platform", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p model.Platform
		var n int
		if err := rows.Scan(&p, &n); err != nil {
			return st, storeErr("stats: scan platform", err)
		}
		st.ByPlatform[p] = n
	}

	var oldest, newest sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MIN(created_at), MAX(updated_at) FROM conversations`).Scan(&oldest, &newest); err != nil {
		return st, storeErr("stats: min/max", err)
	}
	if oldest.Valid {
		v := oldest.Int64
		st.Oldest = &v
	}
	if newest.Valid {
		v := newest.Int64
		st.Newest = &v
	}
	return st, nil
}

var _ Store = (*SQLiteStore)(nil)
