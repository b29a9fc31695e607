package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "chitchat/internal/errors"
	"chitchat/internal/models"

	"github.com/oklog/ulid/v2"
)

// InsertMessage persists a new message. When deliverNow is set the owning
// conversation's latest message pointer moves to it in the same transaction;
// a missing conversation then aborts the insert with NotFound.
func (d *Database) InsertMessage(ctx context.Context, msg *models.Message, deliverNow bool) error {
	if msg.ID == "" {
		msg.ID = ulid.Make().String()
	}
	now := time.Now().UTC()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}
	msg.UpdatedAt = msg.CreatedAt

	content, err := d.content.Seal(msg.ID, msg.Content)
	if err != nil {
		return fmt.Errorf("failed to encrypt message content: %w", err)
	}

	err = retryableDBOperationNoReturn(ctx, func() error {
		tx, err := d.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, InsertMessageQuery,
			msg.ID, msg.SenderID, msg.ChatID, content, nullableMillis(msg.ScheduledFor),
			toMillis(msg.CreatedAt), toMillis(msg.UpdatedAt)); err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}

		if deliverNow {
			if err := setLatestMessage(ctx, tx, msg.ChatID, msg.ID, msg.CreatedAt); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, "insert message")
	return classify("insert message", err)
}

// PromoteMessage atomically clears scheduled_for on a pending message and
// points its conversation's latest message at it. It reports false, nil when
// the message was already promoted (or dead-lettered) by someone else. A
// missing conversation rolls the promotion back and returns NotFound, leaving
// the message pending.
func (d *Database) PromoteMessage(ctx context.Context, messageID, chatID string, at time.Time) (bool, error) {
	promoted, err := retryableDBOperation(ctx, func() (bool, error) {
		tx, err := d.db.BeginTx(ctx, nil)
		if err != nil {
			return false, err
		}
		defer func() { _ = tx.Rollback() }()

		res, err := tx.ExecContext(ctx, PromoteMessageQuery, toMillis(at), messageID)
		if err != nil {
			return false, fmt.Errorf("failed to promote message: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return false, err
		}
		if n == 0 {
			return false, nil
		}

		if err := setLatestMessage(ctx, tx, chatID, messageID, at); err != nil {
			return false, err
		}
		if err := tx.Commit(); err != nil {
			return false, err
		}
		return true, nil
	}, "promote message")
	if err != nil {
		return false, classify("promote message", err)
	}
	return promoted, nil
}

func setLatestMessage(ctx context.Context, tx *sql.Tx, chatID, messageID string, at time.Time) error {
	res, err := tx.ExecContext(ctx, UpdateLatestMessageQuery, messageID, toMillis(at), chatID)
	if err != nil {
		return fmt.Errorf("failed to update latest message: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NewNotFoundError("chat", chatID)
	}
	return nil
}

// RecordDeliveryFailure bumps the attempt counter of a pending message. With
// maxAttempts > 0 the message is dead-lettered once the counter reaches it.
func (d *Database) RecordDeliveryFailure(ctx context.Context, messageID string, maxAttempts int, at time.Time) (int, bool, error) {
	var attempts int
	var failedAt sql.NullInt64
	err := retryableDBOperationNoReturn(ctx, func() error {
		return d.db.QueryRowContext(ctx, RecordDeliveryFailureQuery,
			maxAttempts, maxAttempts, toMillis(at), toMillis(at), messageID).Scan(&attempts, &failedAt)
	}, "record delivery failure")
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, classify("record delivery failure", err)
	}
	return attempts, failedAt.Valid, nil
}

// GetMessage returns nil, nil when the message does not exist.
func (d *Database) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	msg, err := retryableDBOperation(ctx, func() (*models.Message, error) {
		return d.scanMessage(d.db.QueryRowContext(ctx, SelectMessageByIDQuery, id))
	}, "get message")
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("get message", err)
	}
	return msg, nil
}

// ListMessages returns the conversation's messages visible at now, oldest
// first. Messages scheduled strictly after now are excluded.
func (d *Database) ListMessages(ctx context.Context, chatID string, now time.Time) ([]*models.Message, error) {
	return d.queryMessages(ctx, "list messages", SelectVisibleMessagesQuery, chatID, toMillis(now))
}

// ListScheduled returns messages scheduled strictly after now, soonest first.
// An empty senderID lists every sender's messages.
func (d *Database) ListScheduled(ctx context.Context, senderID string, now time.Time, limit int) ([]*models.Message, error) {
	return d.queryMessages(ctx, "list scheduled", SelectScheduledMessagesQuery, toMillis(now), senderID, senderID, limit)
}

// ListDueMessages returns pending messages whose time has come and that have
// not been dead-lettered. Messages with fewer failed attempts come first so
// repeatedly failing ones cannot fill every batch.
func (d *Database) ListDueMessages(ctx context.Context, now time.Time, limit int) ([]*models.Message, error) {
	return d.queryMessages(ctx, "list due messages", SelectDueMessagesQuery, toMillis(now), limit)
}

// CountScheduled returns the number of messages still in the future and the
// number due at or before overdueBefore that nobody has promoted yet.
func (d *Database) CountScheduled(ctx context.Context, now, overdueBefore time.Time) (int, int, error) {
	var pending, overdue int
	err := retryableDBOperationNoReturn(ctx, func() error {
		return d.db.QueryRowContext(ctx, CountScheduledQuery, toMillis(now), toMillis(overdueBefore)).Scan(&pending, &overdue)
	}, "count scheduled")
	if err != nil {
		return 0, 0, classify("count scheduled", err)
	}
	return pending, overdue, nil
}

// MarkRead records that userID has seen the message.
func (d *Database) MarkRead(ctx context.Context, messageID, userID string) error {
	err := retryableDBOperationNoReturn(ctx, func() error {
		_, err := d.db.ExecContext(ctx, InsertMessageReadQuery, messageID, userID, toMillis(time.Now()))
		return err
	}, "mark read")
	return classify("mark read", err)
}

func (d *Database) queryMessages(ctx context.Context, operation, query string, args ...any) ([]*models.Message, error) {
	msgs, err := retryableDBOperation(ctx, func() ([]*models.Message, error) {
		rows, err := d.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		defer func() { _ = rows.Close() }()

		msgs := []*models.Message{}
		for rows.Next() {
			msg, err := d.scanMessage(rows)
			if err != nil {
				return nil, err
			}
			msgs = append(msgs, msg)
		}
		return msgs, rows.Err()
	}, operation)
	if err != nil {
		return nil, classify(operation, err)
	}
	return msgs, nil
}

func (d *Database) scanMessage(row rowScanner) (*models.Message, error) {
	var msg models.Message
	var scheduledFor, failedAt sql.NullInt64
	var createdAt, updatedAt int64
	var senderName, senderPic, senderEmail, readBy sql.NullString

	if err := row.Scan(&msg.ID, &msg.SenderID, &msg.ChatID, &msg.Content, &scheduledFor,
		&msg.DeliveryAttempts, &failedAt, &createdAt, &updatedAt,
		&senderName, &senderPic, &senderEmail, &readBy); err != nil {
		return nil, err
	}

	content, err := d.content.Open(msg.ID, msg.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt message %s: %w", msg.ID, err)
	}
	msg.Content = content
	msg.ScheduledFor = timePtr(scheduledFor)
	msg.DeliveryFailedAt = timePtr(failedAt)
	msg.CreatedAt = fromMillis(createdAt)
	msg.UpdatedAt = fromMillis(updatedAt)
	msg.ReadBy = []string{}
	if readBy.Valid && readBy.String != "" {
		msg.ReadBy = strings.Split(readBy.String, ",")
	}
	if senderName.Valid {
		msg.Sender = &models.UserSummary{
			ID:    msg.SenderID,
			Name:  senderName.String,
			Pic:   senderPic.String,
			Email: senderEmail.String,
		}
	}
	return &msg, nil
}
