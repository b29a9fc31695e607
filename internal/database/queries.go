package database

// User queries
const (
	InsertUserQuery = `
		INSERT INTO users (id, name, username, email, password_hash, pic, is_admin, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	selectUserColumns = `SELECT id, name, username, email, password_hash, pic, is_admin, created_at, updated_at FROM users`

	SelectUserByIDQuery    = selectUserColumns + ` WHERE id = ?`
	SelectUserByEmailQuery = selectUserColumns + ` WHERE email = ? COLLATE NOCASE`

	SearchUsersQuery = selectUserColumns + `
		WHERE id != ?
		  AND (name LIKE ? ESCAPE '\' OR email LIKE ? ESCAPE '\' OR username LIKE ? ESCAPE '\')
		ORDER BY name
		LIMIT ?
	`
)

// Conversation queries
const (
	InsertChatQuery = `
		INSERT INTO chats (id, name, is_group, group_admin_id, latest_message_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, NULL, ?, ?)
	`

	InsertParticipantQuery = `
		INSERT OR IGNORE INTO chat_participants (chat_id, user_id, joined_at) VALUES (?, ?, ?)
	`

	DeleteParticipantQuery = `DELETE FROM chat_participants WHERE chat_id = ? AND user_id = ?`

	SelectChatByIDQuery = `
		SELECT id, name, is_group, group_admin_id, latest_message_id, created_at, updated_at
		FROM chats WHERE id = ?
	`

	SelectChatsForUserQuery = `
		SELECT c.id, c.name, c.is_group, c.group_admin_id, c.latest_message_id, c.created_at, c.updated_at
		FROM chats c
		JOIN chat_participants p ON p.chat_id = c.id
		WHERE p.user_id = ?
		ORDER BY c.updated_at DESC, c.id
	`

	SelectDirectChatQuery = `
		SELECT c.id
		FROM chats c
		WHERE c.is_group = 0
		  AND EXISTS (SELECT 1 FROM chat_participants WHERE chat_id = c.id AND user_id = ?)
		  AND EXISTS (SELECT 1 FROM chat_participants WHERE chat_id = c.id AND user_id = ?)
		  AND (SELECT COUNT(*) FROM chat_participants WHERE chat_id = c.id) = 2
		LIMIT 1
	`

	SelectParticipantsQuery = `
		SELECT p.user_id, COALESCE(u.name, ''), COALESCE(u.pic, ''), COALESCE(u.email, '')
		FROM chat_participants p
		LEFT JOIN users u ON u.id = p.user_id
		WHERE p.chat_id = ?
		ORDER BY p.joined_at, p.user_id
	`

	RenameChatQuery = `UPDATE chats SET name = ?, updated_at = ? WHERE id = ?`

	TouchChatQuery = `UPDATE chats SET updated_at = ? WHERE id = ?`

	UpdateLatestMessageQuery = `UPDATE chats SET latest_message_id = ?, updated_at = ? WHERE id = ?`
)

// Message queries
const (
	InsertMessageQuery = `
		INSERT INTO messages (id, sender_id, chat_id, content, scheduled_for, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	// PromoteMessageQuery is the compare-and-swap that moves a message from
	// pending to delivered. Zero affected rows means someone else already did.
	PromoteMessageQuery = `
		UPDATE messages
		SET scheduled_for = NULL, updated_at = ?
		WHERE id = ? AND scheduled_for IS NOT NULL AND delivery_failed_at IS NULL
	`

	RecordDeliveryFailureQuery = `
		UPDATE messages
		SET delivery_attempts = delivery_attempts + 1,
		    delivery_failed_at = CASE WHEN ? > 0 AND delivery_attempts + 1 >= ? THEN ? ELSE NULL END,
		    updated_at = ?
		WHERE id = ? AND scheduled_for IS NOT NULL
		RETURNING delivery_attempts, delivery_failed_at
	`

	selectMessageColumns = `
		SELECT m.id, m.sender_id, m.chat_id, m.content, m.scheduled_for,
		       m.delivery_attempts, m.delivery_failed_at, m.created_at, m.updated_at,
		       u.name, u.pic, u.email,
		       (SELECT GROUP_CONCAT(r.user_id) FROM message_reads r WHERE r.message_id = m.id)
		FROM messages m
		LEFT JOIN users u ON u.id = m.sender_id
	`

	SelectMessageByIDQuery = selectMessageColumns + ` WHERE m.id = ?`

	// Due-but-unreconciled messages stay visible; only future ones are hidden.
	SelectVisibleMessagesQuery = selectMessageColumns + `
		WHERE m.chat_id = ? AND (m.scheduled_for IS NULL OR m.scheduled_for <= ?)
		ORDER BY m.created_at, m.id
	`

	SelectScheduledMessagesQuery = selectMessageColumns + `
		WHERE m.scheduled_for > ? AND (? = '' OR m.sender_id = ?)
		ORDER BY m.scheduled_for, m.id
		LIMIT ?
	`

	SelectDueMessagesQuery = selectMessageColumns + `
		WHERE m.scheduled_for IS NOT NULL AND m.scheduled_for <= ? AND m.delivery_failed_at IS NULL
		ORDER BY m.delivery_attempts, m.scheduled_for, m.id
		LIMIT ?
	`

	CountScheduledQuery = `
		SELECT
			COALESCE(SUM(CASE WHEN scheduled_for > ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN scheduled_for <= ? AND delivery_failed_at IS NULL THEN 1 ELSE 0 END), 0)
		FROM messages
		WHERE scheduled_for IS NOT NULL
	`

	InsertMessageReadQuery = `
		INSERT OR IGNORE INTO message_reads (message_id, user_id, read_at) VALUES (?, ?, ?)
	`
)
