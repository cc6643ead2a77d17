package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/models"
)

// ConversationRepository abstracts conversation persistence.
type ConversationRepository interface {
	CreateOrGetByApplication(ctx context.Context, applicationID int, participantIDs []int) (models.Conversation, error)
	CreateOrGetByCompetition(ctx context.Context, competitionID int, participantIDs []int) (models.Conversation, error)
	GetConversation(ctx context.Context, conversationID int) (models.Conversation, error)
	IsParticipant(ctx context.Context, conversationID int, userID int) (bool, error)
	GetParticipants(ctx context.Context, conversationID int) ([]models.Participant, error)
	ListForUser(ctx context.Context, userID int) ([]models.Conversation, error)
	MarkRead(ctx context.Context, conversationID int, userID int) error
	UnreadTotal(ctx context.Context, userID int) (int, error)
}

const conversationColumns = `id, application_id, competition_id, last_message_id, created_at, updated_at`

// ConversationRepo is a sqlx implementation of ConversationRepository.
type ConversationRepo struct {
	db *sqlx.DB
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

// CreateOrGetByApplication returns the conversation for an application,
// creating it with zeroed unread counters when absent. Concurrent first-time
// callers converge on one row via the unique index on application_id.
func (r *ConversationRepo) CreateOrGetByApplication(ctx context.Context, applicationID int, participantIDs []int) (models.Conversation, error) {
	insert := `INSERT INTO conversations (application_id) VALUES ($1)
        ON CONFLICT (application_id) WHERE application_id IS NOT NULL DO NOTHING
        RETURNING ` + conversationColumns
	get := `SELECT ` + conversationColumns + ` FROM conversations WHERE application_id=$1`
	return r.createOrGet(ctx, insert, get, applicationID, participantIDs)
}

// CreateOrGetByCompetition is the competition-registration variant.
func (r *ConversationRepo) CreateOrGetByCompetition(ctx context.Context, competitionID int, participantIDs []int) (models.Conversation, error) {
	insert := `INSERT INTO conversations (competition_id) VALUES ($1)
        ON CONFLICT (competition_id) WHERE competition_id IS NOT NULL DO NOTHING
        RETURNING ` + conversationColumns
	get := `SELECT ` + conversationColumns + ` FROM conversations WHERE competition_id=$1`
	return r.createOrGet(ctx, insert, get, competitionID, participantIDs)
}

func (r *ConversationRepo) createOrGet(ctx context.Context, insert, get string, originID int, participantIDs []int) (models.Conversation, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Conversation{}, err
	}
	defer tx.Rollback()

	var conv models.Conversation
	err = tx.QueryRowxContext(ctx, insert, originID).StructScan(&conv)
	if errors.Is(err, sql.ErrNoRows) {
		// Lost the creation race. The losing insert blocks until the winner
		// commits, so a plain re-read sees the winning row.
		if err := r.db.GetContext(ctx, &conv, get, originID); err != nil {
			return models.Conversation{}, err
		}
		return conv, nil
	}
	if err != nil {
		return models.Conversation{}, err
	}

	for _, userID := range participantIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO conversation_participants (conversation_id, user_id) VALUES ($1, $2)
             ON CONFLICT (conversation_id, user_id) DO NOTHING`, conv.ID, userID); err != nil {
			return models.Conversation{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return models.Conversation{}, err
	}
	return conv, nil
}

// GetConversation fetches a conversation by id.
func (r *ConversationRepo) GetConversation(ctx context.Context, conversationID int) (models.Conversation, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv, `SELECT `+conversationColumns+` FROM conversations WHERE id=$1`, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, apperrors.ErrNotFound
	}
	return conv, err
}

// IsParticipant checks whether a user belongs to the conversation.
func (r *ConversationRepo) IsParticipant(ctx context.Context, conversationID int, userID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM conversation_participants WHERE conversation_id=$1 AND user_id=$2)`,
		conversationID, userID)
	return exists, err
}

// GetParticipants returns the participant rows for a conversation.
func (r *ConversationRepo) GetParticipants(ctx context.Context, conversationID int) ([]models.Participant, error) {
	var participants []models.Participant
	err := r.db.SelectContext(ctx, &participants,
		`SELECT conversation_id, user_id, unread_count FROM conversation_participants
         WHERE conversation_id=$1 ORDER BY user_id`, conversationID)
	return participants, err
}

// ListForUser returns the user's conversations, most recently updated first.
func (r *ConversationRepo) ListForUser(ctx context.Context, userID int) ([]models.Conversation, error) {
	query := `SELECT c.id, c.application_id, c.competition_id, c.last_message_id, c.created_at, c.updated_at
        FROM conversations c
        JOIN conversation_participants p ON p.conversation_id = c.id
        WHERE p.user_id=$1
        ORDER BY c.updated_at DESC, c.id DESC`
	var conversations []models.Conversation
	err := r.db.SelectContext(ctx, &conversations, query, userID)
	return conversations, err
}

// MarkRead stamps read_at on every message the user has not sent and resets
// the user's unread counter. Both writes commit together so readers never
// observe one half without the other.
func (r *ConversationRepo) MarkRead(ctx context.Context, conversationID int, userID int) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE messages SET read_at = NOW()
         WHERE conversation_id=$1 AND sender_id <> $2 AND read_at IS NULL`,
		conversationID, userID); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE conversation_participants SET unread_count = 0
         WHERE conversation_id=$1 AND user_id=$2`,
		conversationID, userID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return apperrors.ErrNotFound
	}

	return tx.Commit()
}

// UnreadTotal sums the user's unread counters across all conversations.
func (r *ConversationRepo) UnreadTotal(ctx context.Context, userID int) (int, error) {
	var total int
	err := r.db.GetContext(ctx, &total,
		`SELECT COALESCE(SUM(unread_count), 0) FROM conversation_participants WHERE user_id=$1`, userID)
	return total, err
}
