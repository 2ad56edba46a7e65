package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dusk-indust/council/internal/council"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Compile-time interface check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore persists council state in SQLite.
type SQLiteStore struct {
	sqlDB *sql.DB
	now   func() time.Time
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// OpenSQLite opens a SQLite council store and applies the embedded schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("store: path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("store: ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schemaSQL); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &SQLiteStore{
		sqlDB: sqlDB,
		now:   func() time.Time { return time.Now().UTC() },
	}, nil
}

// Close closes the SQLite handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// CreateSession inserts the session row and its member rows in one
// transaction.
func (s *SQLiteStore) CreateSession(ctx context.Context, session council.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(session.ID) == "" {
		return fmt.Errorf("store: session id is required")
	}
	if strings.TrimSpace(session.Topic) == "" {
		return fmt.Errorf("store: topic is required")
	}
	if !session.Mode.Valid() {
		return fmt.Errorf("store: invalid mode %q", session.Mode)
	}
	createdAt := session.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO council_sessions (id, topic, objective, mode, status, created_by, created_at, rationale)
		 VALUES (?, ?, ?, ?, ?, ?, ?, '')`,
		session.ID, session.Topic, session.Objective,
		string(session.Mode), string(session.Status),
		session.CreatedBy, toMillis(createdAt),
	)
	if err != nil {
		return fmt.Errorf("store: insert session: %w", err)
	}

	for _, m := range session.Members {
		if m.Weight <= 0 {
			return fmt.Errorf("store: member %q weight must be positive", m.ID)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO council_members (id, session_id, agent_id, role, weight, stance)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			m.ID, session.ID, m.AgentID, m.Role, m.Weight, m.Stance,
		)
		if err != nil {
			return fmt.Errorf("store: insert member %s: %w", m.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// GetSession loads a session with members sorted by ID and messages ordered
// by (turn_no, created_at).
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*council.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, topic, objective, mode, status, created_by, created_at,
		        decided_at, final_decision, confidence, rationale
		   FROM council_sessions WHERE id = ?`, id)

	var (
		sess          council.Session
		mode, status  string
		createdAt     int64
		decidedAt     sql.NullInt64
		finalDecision sql.NullString
		confidence    sql.NullFloat64
	)
	err := row.Scan(&sess.ID, &sess.Topic, &sess.Objective, &mode, &status,
		&sess.CreatedBy, &createdAt, &decidedAt, &finalDecision, &confidence, &sess.Rationale)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan session: %w", err)
	}

	sess.Mode = council.Mode(mode)
	sess.Status = council.SessionStatus(status)
	sess.CreatedAt = fromMillis(createdAt)
	if decidedAt.Valid {
		t := fromMillis(decidedAt.Int64)
		sess.DecidedAt = &t
	}
	if confidence.Valid {
		sess.Confidence = confidence.Float64
	}
	if finalDecision.Valid && finalDecision.String != "" {
		var d council.Decision
		if err := json.Unmarshal([]byte(finalDecision.String), &d); err != nil {
			return nil, fmt.Errorf("store: decode final decision: %w", err)
		}
		sess.FinalDecision = &d
	}

	members, err := s.loadMembers(ctx, id)
	if err != nil {
		return nil, err
	}
	sess.Members = members

	messages, err := s.loadMessages(ctx, id)
	if err != nil {
		return nil, err
	}
	sess.Messages = messages

	return &sess, nil
}

func (s *SQLiteStore) loadMembers(ctx context.Context, sessionID string) ([]council.Member, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, session_id, agent_id, role, weight, stance, vote, vote_score, reasoning, responded_at
		   FROM council_members WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("store: query members: %w", err)
	}
	defer rows.Close()

	var members []council.Member
	for rows.Next() {
		var (
			m           council.Member
			vote        sql.NullString
			voteScore   sql.NullFloat64
			reasoning   sql.NullString
			respondedAt sql.NullInt64
		)
		err := rows.Scan(&m.ID, &m.SessionID, &m.AgentID, &m.Role, &m.Weight,
			&m.Stance, &vote, &voteScore, &reasoning, &respondedAt)
		if err != nil {
			return nil, fmt.Errorf("store: scan member: %w", err)
		}
		if vote.Valid {
			v := council.Vote(vote.String)
			m.Vote = &v
		}
		if voteScore.Valid {
			score := voteScore.Float64
			m.VoteScore = &score
		}
		if reasoning.Valid {
			m.Reasoning = reasoning.String
		}
		if respondedAt.Valid {
			t := fromMillis(respondedAt.Int64)
			m.RespondedAt = &t
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (s *SQLiteStore) loadMessages(ctx context.Context, sessionID string) ([]council.Message, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, session_id, turn_no, speaker_id, message_type, content, metadata, created_at
		   FROM council_messages WHERE session_id = ? ORDER BY turn_no, created_at`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("store: query messages: %w", err)
	}
	defer rows.Close()

	var messages []council.Message
	for rows.Next() {
		var (
			msg       council.Message
			msgType   string
			metadata  sql.NullString
			createdAt int64
		)
		err := rows.Scan(&msg.ID, &msg.SessionID, &msg.TurnNo, &msg.SpeakerID,
			&msgType, &msg.Content, &metadata, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("store: scan message: %w", err)
		}
		msg.Type = council.MessageType(msgType)
		msg.CreatedAt = fromMillis(createdAt)
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &msg.Metadata); err != nil {
				return nil, fmt.Errorf("store: decode message metadata: %w", err)
			}
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// ListSessions returns sessions in creation order, oldest first, without
// members or messages.
func (s *SQLiteStore) ListSessions(ctx context.Context, filter ListFilter) ([]council.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	query := `SELECT id, topic, objective, mode, status, created_by, created_at, confidence, rationale
	            FROM council_sessions`
	var args []any
	if filter.Status != "" {
		query += " WHERE status = ?"
		args = append(args, string(filter.Status))
	}
	query += " ORDER BY created_at, id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []council.Session
	for rows.Next() {
		var (
			sess         council.Session
			mode, status string
			createdAt    int64
			confidence   sql.NullFloat64
		)
		err := rows.Scan(&sess.ID, &sess.Topic, &sess.Objective, &mode, &status,
			&sess.CreatedBy, &createdAt, &confidence, &sess.Rationale)
		if err != nil {
			return nil, fmt.Errorf("store: scan session: %w", err)
		}
		sess.Mode = council.Mode(mode)
		sess.Status = council.SessionStatus(status)
		sess.CreatedAt = fromMillis(createdAt)
		if confidence.Valid {
			sess.Confidence = confidence.Float64
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// SubmitVote records a member's vote while the vote column is still NULL.
func (s *SQLiteStore) SubmitVote(ctx context.Context, sessionID, memberID string, vote council.Vote, reasoningJSON string, confidence float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE council_members
		    SET vote = ?, vote_score = ?, reasoning = ?, responded_at = ?
		  WHERE id = ? AND session_id = ? AND vote IS NULL`,
		string(vote), confidence, reasoningJSON, toMillis(s.now()),
		memberID, sessionID,
	)
	if err != nil {
		return fmt.Errorf("store: submit vote: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: submit vote rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	// Nothing updated: distinguish a missing member from a re-vote.
	var existing sql.NullString
	err = s.sqlDB.QueryRowContext(ctx,
		`SELECT vote FROM council_members WHERE id = ? AND session_id = ?`,
		memberID, sessionID,
	).Scan(&existing)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrMemberNotFound
	}
	if err != nil {
		return fmt.Errorf("store: check member: %w", err)
	}
	return ErrAlreadyVoted
}

// AppendMessage appends one audit log entry.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg council.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg.ID == "" {
		msg.ID = council.NewID()
	}
	createdAt := msg.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	var metadata any
	if len(msg.Metadata) > 0 {
		encoded, err := json.Marshal(msg.Metadata)
		if err != nil {
			return fmt.Errorf("store: encode message metadata: %w", err)
		}
		metadata = string(encoded)
	}

	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO council_messages (id, session_id, turn_no, speaker_id, message_type, content, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.SessionID, msg.TurnNo, msg.SpeakerID,
		string(msg.Type), msg.Content, metadata, toMillis(createdAt),
	)
	if err != nil {
		return fmt.Errorf("store: append message: %w", err)
	}
	return nil
}

// FinalizeDecision moves the session to decided and records the decision.
func (s *SQLiteStore) FinalizeDecision(ctx context.Context, sessionID string, decision council.Decision, confidence float64, rationale string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	encoded, err := json.Marshal(decision)
	if err != nil {
		return fmt.Errorf("store: encode decision: %w", err)
	}

	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE council_sessions
		    SET status = ?, decided_at = ?, final_decision = ?, confidence = ?, rationale = ?
		  WHERE id = ?`,
		string(council.StatusDecided), toMillis(s.now()), string(encoded),
		confidence, rationale, sessionID,
	)
	if err != nil {
		return fmt.Errorf("store: finalize decision: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: finalize rows affected: %w", err)
	}
	if affected == 0 {
		return ErrSessionNotFound
	}
	return nil
}
