// Package store persists the communication log and the issue directory
// in a local SQLite database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/avion00/buy2rent-vendormail/internal/model"
)

// SQLiteStore implements ConversationStore and IssueDirectory using a
// local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys.
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	// Concurrent writers (poll cycle vs. approval) wait instead of
	// failing with SQLITE_BUSY.
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

const entryColumns = `id, issue_id, sender, message_type, subject, body,
	status, email_from, email_to, email_message_id, email_thread_id,
	in_reply_to, ai_generated, ai_confidence, approved_by, approved_at,
	timestamp`

// AppendEntry inserts a new CommunicationLogEntry. Missing id, thread id,
// and timestamp are assigned here. When the entry carries a non-null
// EmailMessageID that already exists, the insert is an idempotent no-op
// and the existing entry is returned with inserted=false.
func (s *SQLiteStore) AppendEntry(
	ctx context.Context,
	entry model.CommunicationLogEntry,
) (model.CommunicationLogEntry, bool, error) {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.MessageType == "" {
		entry.MessageType = model.MessageTypeEmail
	}
	if entry.EmailThreadID == "" {
		entry.EmailThreadID = model.ThreadID(entry.IssueID)
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	const query = `
		INSERT INTO communication_log (
			id, issue_id, sender, message_type, subject, body,
			status, email_from, email_to, email_message_id, email_thread_id,
			in_reply_to, ai_generated, ai_confidence, approved_by, approved_at,
			timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (email_message_id) WHERE email_message_id IS NOT NULL
		DO NOTHING`

	res, err := s.db.ExecContext(ctx, query,
		entry.ID, entry.IssueID, string(entry.Sender), entry.MessageType,
		entry.Subject, entry.Body,
		string(entry.Status), entry.EmailFrom, entry.EmailTo,
		entry.EmailMessageID, entry.EmailThreadID,
		entry.InReplyTo, boolToInt(entry.AIGenerated), entry.AIConfidence,
		entry.ApprovedBy, entry.ApprovedAt,
		entry.Timestamp.UTC(),
	)
	if err != nil {
		return model.CommunicationLogEntry{}, false, fmt.Errorf("appending log entry: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return model.CommunicationLogEntry{}, false, fmt.Errorf("checking append result: %w", err)
	}

	if affected > 0 {
		return entry, true, nil
	}

	// Duplicate message id: return the entry already recorded for it.
	if entry.EmailMessageID == nil {
		return model.CommunicationLogEntry{}, false,
			fmt.Errorf("appending log entry %s: insert affected no rows", entry.ID)
	}
	existing, err := s.getEntryByMessageID(ctx, *entry.EmailMessageID)
	if err != nil {
		return model.CommunicationLogEntry{}, false, err
	}
	return *existing, false, nil
}

// GetEntry retrieves a single entry by id.
func (s *SQLiteStore) GetEntry(
	ctx context.Context, id string,
) (*model.CommunicationLogEntry, error) {
	row := s.db.QueryRowxContext(ctx,
		"SELECT "+entryColumns+" FROM communication_log WHERE id = ?", id,
	)
	entry, err := scanEntryRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("entry %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("getting entry %s: %w", id, err)
	}
	return &entry, nil
}

// getEntryByMessageID retrieves the entry recorded for a transport-level
// Message-ID.
func (s *SQLiteStore) getEntryByMessageID(
	ctx context.Context, messageID string,
) (*model.CommunicationLogEntry, error) {
	row := s.db.QueryRowxContext(ctx,
		"SELECT "+entryColumns+" FROM communication_log WHERE email_message_id = ?",
		messageID,
	)
	entry, err := scanEntryRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("message id %s: %w", messageID, ErrNotFound)
		}
		return nil, fmt.Errorf("getting entry by message id: %w", err)
	}
	return &entry, nil
}

// Thread returns all entries for an issue ordered by timestamp ascending.
func (s *SQLiteStore) Thread(
	ctx context.Context, issueID string,
) ([]model.CommunicationLogEntry, error) {
	rows, err := s.db.QueryxContext(ctx,
		"SELECT "+entryColumns+
			" FROM communication_log WHERE issue_id = ?"+
			" ORDER BY timestamp ASC, id ASC",
		issueID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying thread for issue %s: %w", issueID, err)
	}
	defer rows.Close()

	return collectEntries(rows)
}

// PendingApprovals lists AI drafts awaiting human action, oldest first.
func (s *SQLiteStore) PendingApprovals(
	ctx context.Context, issueID string,
) ([]model.CommunicationLogEntry, error) {
	query := "SELECT " + entryColumns +
		" FROM communication_log WHERE sender = ? AND status = ?"
	args := []interface{}{string(model.SenderAI), string(model.StatusPendingApproval)}

	if issueID != "" {
		query += " AND issue_id = ?"
		args = append(args, issueID)
	}
	query += " ORDER BY timestamp ASC, id ASC"

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying pending approvals: %w", err)
	}
	defer rows.Close()

	return collectEntries(rows)
}

// TransitionEntry performs the compare-and-set status transition. The
// WHERE clause re-checks the source status at write time, so of two
// concurrent callers exactly one observes rows-affected > 0.
// Nil approvedBy/approvedAt leave any previously written values intact.
func (s *SQLiteStore) TransitionEntry(
	ctx context.Context,
	id string,
	from []model.EntryStatus,
	to model.EntryStatus,
	approvedBy *string,
	approvedAt *time.Time,
) (*model.CommunicationLogEntry, error) {
	if len(from) == 0 {
		return nil, fmt.Errorf("transitioning entry %s: no source status given", id)
	}
	for _, f := range from {
		if !model.CanTransition(f, to) {
			return nil, fmt.Errorf(
				"transitioning entry %s: %s -> %s is not a legal transition",
				id, f, to,
			)
		}
	}

	placeholders := make([]string, len(from))
	args := []interface{}{string(to), approvedBy, approvedAt, id}
	for i, f := range from {
		placeholders[i] = "?"
		args = append(args, string(f))
	}

	query := `
		UPDATE communication_log
		SET status = ?,
			approved_by = COALESCE(?, approved_by),
			approved_at = COALESCE(?, approved_at)
		WHERE id = ? AND status IN (` + strings.Join(placeholders, ", ") + `)`

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("transitioning entry %s: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("checking transition result: %w", err)
	}

	if affected == 0 {
		entry, getErr := s.GetEntry(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		return nil, fmt.Errorf(
			"entry %s is already %s: %w", id, entry.Status, ErrStatusConflict,
		)
	}

	return s.GetEntry(ctx, id)
}

// GetIssue retrieves an issue record by id.
func (s *SQLiteStore) GetIssue(
	ctx context.Context, id string,
) (*model.Issue, error) {
	row := s.db.QueryRowxContext(ctx, `
		SELECT id, vendor_name, vendor_email, issue_type, description,
			status, ai_activated, created_at, updated_at
		FROM issues WHERE id = ?`, id,
	)

	var (
		issue       model.Issue
		status      string
		aiActivated int
	)
	err := row.Scan(
		&issue.ID, &issue.VendorName, &issue.VendorEmail,
		&issue.IssueType, &issue.Description,
		&status, &aiActivated, &issue.CreatedAt, &issue.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("issue %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("getting issue %s: %w", id, err)
	}

	issue.Status = model.IssueStatus(status)
	issue.AIActivated = aiActivated != 0

	return &issue, nil
}

// SetAIActivated writes the AI-conversation flag back to the issue.
func (s *SQLiteStore) SetAIActivated(
	ctx context.Context, id string, activated bool,
) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE issues SET ai_activated = ?, updated_at = ? WHERE id = ?",
		boolToInt(activated), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("setting ai_activated for issue %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("issue %s: %w", id, ErrNotFound)
	}
	return nil
}

// SetIssueStatus writes the resolution status back to the issue.
func (s *SQLiteStore) SetIssueStatus(
	ctx context.Context, id string, status model.IssueStatus,
) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE issues SET status = ?, updated_at = ? WHERE id = ?",
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("setting status for issue %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("issue %s: %w", id, ErrNotFound)
	}
	return nil
}

// UpsertIssue inserts or replaces an issue record.
func (s *SQLiteStore) UpsertIssue(
	ctx context.Context, issue model.Issue,
) error {
	if issue.ID == "" {
		issue.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if issue.CreatedAt.IsZero() {
		issue.CreatedAt = now
	}
	issue.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO issues (
			id, vendor_name, vendor_email, issue_type, description,
			status, ai_activated, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		issue.ID, issue.VendorName, issue.VendorEmail,
		issue.IssueType, issue.Description,
		string(issue.Status), boolToInt(issue.AIActivated),
		issue.CreatedAt.UTC(), issue.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upserting issue %s: %w", issue.ID, err)
	}
	return nil
}

// collectEntries drains a result set of log entries.
func collectEntries(rows *sqlx.Rows) ([]model.CommunicationLogEntry, error) {
	var entries []model.CommunicationLogEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// scanEntry scans a log entry from a sqlx.Rows result set.
func scanEntry(rows *sqlx.Rows) (model.CommunicationLogEntry, error) {
	var (
		entry       model.CommunicationLogEntry
		sender      string
		status      string
		aiGenerated int
	)

	err := rows.Scan(
		&entry.ID, &entry.IssueID, &sender, &entry.MessageType,
		&entry.Subject, &entry.Body,
		&status, &entry.EmailFrom, &entry.EmailTo,
		&entry.EmailMessageID, &entry.EmailThreadID,
		&entry.InReplyTo, &aiGenerated, &entry.AIConfidence,
		&entry.ApprovedBy, &entry.ApprovedAt,
		&entry.Timestamp,
	)
	if err != nil {
		return model.CommunicationLogEntry{}, fmt.Errorf("scanning log entry: %w", err)
	}

	entry.Sender = model.Sender(sender)
	entry.Status = model.EntryStatus(status)
	entry.AIGenerated = aiGenerated != 0

	return entry, nil
}

// scanEntryRow scans a single log entry from a sqlx.Row.
func scanEntryRow(row *sqlx.Row) (model.CommunicationLogEntry, error) {
	var (
		entry       model.CommunicationLogEntry
		sender      string
		status      string
		aiGenerated int
	)

	err := row.Scan(
		&entry.ID, &entry.IssueID, &sender, &entry.MessageType,
		&entry.Subject, &entry.Body,
		&status, &entry.EmailFrom, &entry.EmailTo,
		&entry.EmailMessageID, &entry.EmailThreadID,
		&entry.InReplyTo, &aiGenerated, &entry.AIConfidence,
		&entry.ApprovedBy, &entry.ApprovedAt,
		&entry.Timestamp,
	)
	if err != nil {
		return model.CommunicationLogEntry{}, err
	}

	entry.Sender = model.Sender(sender)
	entry.Status = model.EntryStatus(status)
	entry.AIGenerated = aiGenerated != 0

	return entry, nil
}

// boolToInt converts a boolean to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
