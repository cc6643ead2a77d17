package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/models"
)

// DirectoryRepository is the read-only view into the platform schema:
// users, job applications and competition entries are owned by other
// subsystems and only ever read from here.
type DirectoryRepository interface {
	GetUser(ctx context.Context, userID int) (models.User, error)
	BulkUsers(ctx context.Context, userIDs []int) ([]models.User, error)
	GetApplication(ctx context.Context, applicationID int) (models.ApplicationRef, error)
	GetCompetitionEntry(ctx context.Context, entryID int) (models.CompetitionRef, error)
}

// DirectoryRepo is a sqlx implementation of DirectoryRepository.
type DirectoryRepo struct {
	db *sqlx.DB
}

// NewDirectoryRepo constructs a DirectoryRepo.
func NewDirectoryRepo(db *sqlx.DB) *DirectoryRepo {
	return &DirectoryRepo{db: db}
}

// GetUser fetches one user record.
func (r *DirectoryRepo) GetUser(ctx context.Context, userID int) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user,
		`SELECT id, name, email, role FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, apperrors.ErrNotFound
	}
	return user, err
}

// BulkUsers fetches multiple users in one query.
func (r *DirectoryRepo) BulkUsers(ctx context.Context, userIDs []int) ([]models.User, error) {
	if len(userIDs) == 0 {
		return []models.User{}, nil
	}

	query, args, err := sqlx.In(`SELECT id, name, email, role FROM users WHERE id IN (?)`, userIDs)
	if err != nil {
		return nil, err
	}
	query = r.db.Rebind(query)

	var users []models.User
	err = r.db.SelectContext(ctx, &users, query, args...)
	return users, err
}

// GetApplication resolves an application to its two canonical conversation
// participants: the applicant and the user who posted the job.
func (r *DirectoryRepo) GetApplication(ctx context.Context, applicationID int) (models.ApplicationRef, error) {
	var ref models.ApplicationRef
	err := r.db.GetContext(ctx, &ref,
		`SELECT a.id, a.applicant_id, j.posted_by AS poster_id
         FROM applications a
         JOIN jobs j ON j.id = a.job_id
         WHERE a.id=$1`, applicationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ApplicationRef{}, apperrors.ErrNotFound
	}
	return ref, err
}

// GetCompetitionEntry resolves a competition registration to the registrant
// and the competition organizer.
func (r *DirectoryRepo) GetCompetitionEntry(ctx context.Context, entryID int) (models.CompetitionRef, error) {
	var ref models.CompetitionRef
	err := r.db.GetContext(ctx, &ref,
		`SELECT e.id, e.user_id AS registrant_id, c.organizer_id
         FROM competition_entries e
         JOIN competitions c ON c.id = e.competition_id
         WHERE e.id=$1`, entryID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.CompetitionRef{}, apperrors.ErrNotFound
	}
	return ref, err
}
