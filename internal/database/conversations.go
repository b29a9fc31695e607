package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	apperrors "chitchat/internal/errors"
	"chitchat/internal/models"

	"github.com/google/uuid"
)

// CreateConversation stores a conversation and its participant set in one
// transaction.
func (d *Database) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	if conv.ID == "" {
		conv.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	conv.CreatedAt = now
	conv.UpdatedAt = now

	var admin sql.NullString
	if conv.GroupAdminID != "" {
		admin = sql.NullString{String: conv.GroupAdminID, Valid: true}
	}

	err := retryableDBOperationNoReturn(ctx, func() error {
		tx, err := d.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, InsertChatQuery,
			conv.ID, conv.Name, conv.IsGroup, admin, toMillis(now), toMillis(now)); err != nil {
			return fmt.Errorf("failed to insert chat: %w", err)
		}
		for i, userID := range conv.ParticipantIDs {
			// Offset join times so participant order is stable.
			if _, err := tx.ExecContext(ctx, InsertParticipantQuery, conv.ID, userID, toMillis(now)+int64(i)); err != nil {
				return fmt.Errorf("failed to insert participant: %w", err)
			}
		}
		return tx.Commit()
	}, "create conversation")
	return classify("create conversation", err)
}

// GetConversation returns the conversation with participants and its latest
// delivered message, or nil, nil when it does not exist.
func (d *Database) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	conv, err := retryableDBOperation(ctx, func() (*models.Conversation, error) {
		return scanConversation(d.db.QueryRowContext(ctx, SelectChatByIDQuery, id))
	}, "get conversation")
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("get conversation", err)
	}

	if err := d.hydrateConversation(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// FindDirectConversation returns the one-to-one conversation between a and b,
// or nil, nil when none exists yet.
func (d *Database) FindDirectConversation(ctx context.Context, a, b string) (*models.Conversation, error) {
	var id string
	err := d.db.QueryRowContext(ctx, SelectDirectChatQuery, a, b).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("find direct conversation", err)
	}
	return d.GetConversation(ctx, id)
}

// ListConversationsForUser returns every conversation userID participates in,
// most recently active first.
func (d *Database) ListConversationsForUser(ctx context.Context, userID string) ([]*models.Conversation, error) {
	convs, err := retryableDBOperation(ctx, func() ([]*models.Conversation, error) {
		rows, err := d.db.QueryContext(ctx, SelectChatsForUserQuery, userID)
		if err != nil {
			return nil, err
		}
		defer func() { _ = rows.Close() }()

		var convs []*models.Conversation
		for rows.Next() {
			conv, err := scanConversation(rows)
			if err != nil {
				return nil, err
			}
			convs = append(convs, conv)
		}
		return convs, rows.Err()
	}, "list conversations")
	if err != nil {
		return nil, classify("list conversations", err)
	}

	for _, conv := range convs {
		if err := d.hydrateConversation(ctx, conv); err != nil {
			return nil, err
		}
	}
	return convs, nil
}

func (d *Database) RenameConversation(ctx context.Context, id, name string) error {
	return d.execAffectingChat(ctx, "rename conversation", id, RenameChatQuery, name, toMillis(time.Now()), id)
}

// AddParticipant is a no-op when userID already participates.
func (d *Database) AddParticipant(ctx context.Context, chatID, userID string) error {
	now := toMillis(time.Now())
	err := retryableDBOperationNoReturn(ctx, func() error {
		tx, err := d.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		res, err := tx.ExecContext(ctx, TouchChatQuery, now, chatID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperrors.NewNotFoundError("chat", chatID)
		}
		if _, err := tx.ExecContext(ctx, InsertParticipantQuery, chatID, userID, now); err != nil {
			return err
		}
		return tx.Commit()
	}, "add participant")
	return classify("add participant", err)
}

func (d *Database) RemoveParticipant(ctx context.Context, chatID, userID string) error {
	if err := d.execAffectingChat(ctx, "remove participant", chatID, TouchChatQuery, toMillis(time.Now()), chatID); err != nil {
		return err
	}
	err := retryableDBOperationNoReturn(ctx, func() error {
		_, err := d.db.ExecContext(ctx, DeleteParticipantQuery, chatID, userID)
		return err
	}, "remove participant")
	return classify("remove participant", err)
}

// execAffectingChat runs a single-row chat update and reports NotFound when
// no row matched.
func (d *Database) execAffectingChat(ctx context.Context, operation, chatID, query string, args ...any) error {
	err := retryableDBOperationNoReturn(ctx, func() error {
		res, err := d.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperrors.NewNotFoundError("chat", chatID)
		}
		return nil
	}, operation)
	return classify(operation, err)
}

func (d *Database) hydrateConversation(ctx context.Context, conv *models.Conversation) error {
	rows, err := d.db.QueryContext(ctx, SelectParticipantsQuery, conv.ID)
	if err != nil {
		return classify("load participants", err)
	}
	defer func() { _ = rows.Close() }()

	conv.ParticipantIDs = conv.ParticipantIDs[:0]
	conv.Users = conv.Users[:0]
	for rows.Next() {
		var u models.UserSummary
		if err := rows.Scan(&u.ID, &u.Name, &u.Pic, &u.Email); err != nil {
			return classify("load participants", err)
		}
		conv.ParticipantIDs = append(conv.ParticipantIDs, u.ID)
		conv.Users = append(conv.Users, u)
	}
	if err := rows.Err(); err != nil {
		return classify("load participants", err)
	}

	if conv.LatestMessageID != nil {
		latest, err := d.GetMessage(ctx, *conv.LatestMessageID)
		if err != nil {
			return err
		}
		conv.LatestMessage = latest
	}
	return nil
}

func scanConversation(row rowScanner) (*models.Conversation, error) {
	var conv models.Conversation
	var admin, latest sql.NullString
	var createdAt, updatedAt int64
	if err := row.Scan(&conv.ID, &conv.Name, &conv.IsGroup, &admin, &latest, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	conv.GroupAdminID = admin.String
	if latest.Valid {
		conv.LatestMessageID = &latest.String
	}
	conv.CreatedAt = fromMillis(createdAt)
	conv.UpdatedAt = fromMillis(updatedAt)
	return &conv, nil
}
