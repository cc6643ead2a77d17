package models

// User is read-only reference data owned by the identity subsystem.
type User struct {
	ID    int    `db:"id" json:"id"`
	Name  string `db:"name" json:"name"`
	Email string `db:"email" json:"email"`
	Role  string `db:"role" json:"role"`
}

// ApplicationRef resolves a job application to its two canonical
// conversation participants.
type ApplicationRef struct {
	ID          int `db:"id"`
	ApplicantID int `db:"applicant_id"`
	PosterID    int `db:"poster_id"`
}

// CompetitionRef resolves a competition registration the same way.
type CompetitionRef struct {
	ID           int `db:"id"`
	RegistrantID int `db:"registrant_id"`
	OrganizerID  int `db:"organizer_id"`
}
