package users

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/linkup/linkup/backend/go-services/internal/models"
)

// ErrEntryNotFound is returned for a work, education or award id that does
// not exist or belongs to someone else.
var ErrEntryNotFound = errors.New("profile entry not found")

// WorkInput is the body of the add and update work experience routes.
type WorkInput struct {
	Organization string  `json:"organization" binding:"required,min=1,max=50"`
	Role         string  `json:"role" binding:"required,min=1,max=50"`
	Location     string  `json:"location" binding:"required,min=1,max=50"`
	Description  *string `json:"description" binding:"omitempty,max=750"`
	StartDate    string  `json:"startDate" binding:"required,datetime=2006-01-02"`
	EndDate      *string `json:"endDate" binding:"omitempty,datetime=2006-01-02"`
}

func (w *WorkInput) Normalize() {
	w.Organization = strings.TrimSpace(w.Organization)
	w.Role = strings.TrimSpace(w.Role)
	w.Location = strings.TrimSpace(w.Location)
	w.StartDate = strings.TrimSpace(w.StartDate)
	trimOptional(&w.Description)
	trimOptional(&w.EndDate)
}

// EducationInput is the body of the add and update education routes.
type EducationInput struct {
	Institute     string  `json:"institute" binding:"required,min=1,max=50"`
	InstituteType string  `json:"instituteType" binding:"required,oneof=school highSchool university bootcamp other"`
	Description   *string `json:"description" binding:"omitempty,max=750"`
	StartDate     string  `json:"startDate" binding:"required,datetime=2006-01-02"`
	EndDate       *string `json:"endDate" binding:"omitempty,datetime=2006-01-02"`
}

func (e *EducationInput) Normalize() {
	e.Institute = strings.TrimSpace(e.Institute)
	e.InstituteType = strings.TrimSpace(e.InstituteType)
	e.StartDate = strings.TrimSpace(e.StartDate)
	trimOptional(&e.Description)
	trimOptional(&e.EndDate)
}

// AwardInput is the body of the add and update award routes.
type AwardInput struct {
	Title       string  `json:"title" binding:"required,min=1,max=50"`
	Description *string `json:"description" binding:"omitempty,max=750"`
}

func (a *AwardInput) Normalize() {
	a.Title = strings.TrimSpace(a.Title)
	trimOptional(&a.Description)
}

// trimOptional trims *p and drops it when nothing is left.
func trimOptional(p **string) {
	if *p == nil {
		return
	}
	s := strings.TrimSpace(**p)
	if s == "" {
		*p = nil
		return
	}
	*p = &s
}

// YYYY-MM-DD strings order lexically. A job must end after it starts; a
// course may end the day it starts.
func (w WorkInput) validRange() bool {
	return w.EndDate == nil || *w.EndDate > w.StartDate
}

func (e EducationInput) validRange() bool {
	return e.EndDate == nil || *e.EndDate >= e.StartDate
}

const (
	workColumns      = `id, organization, role, location, description, to_char(start_date, 'YYYY-MM-DD'), to_char(end_date, 'YYYY-MM-DD'), created_at`
	educationColumns = `id, institute, institute_type, description, to_char(start_date, 'YYYY-MM-DD'), to_char(end_date, 'YYYY-MM-DD'), created_at`
	awardColumns     = `id, title, description, created_at`
)

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanWork(row scanner) (*models.WorkExperience, error) {
	var (
		w    models.WorkExperience
		desc sql.NullString
		end  sql.NullString
	)
	if err := row.Scan(&w.ID, &w.Organization, &w.Role, &w.Location, &desc, &w.StartDate, &end, &w.CreatedAt); err != nil {
		return nil, err
	}
	w.Description = nullable(desc)
	w.EndDate = nullable(end)
	return &w, nil
}

func scanEducation(row scanner) (*models.Education, error) {
	var (
		e    models.Education
		desc sql.NullString
		end  sql.NullString
	)
	if err := row.Scan(&e.ID, &e.Institute, &e.InstituteType, &desc, &e.StartDate, &end, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.Description = nullable(desc)
	e.EndDate = nullable(end)
	return &e, nil
}

func scanAward(row scanner) (*models.Award, error) {
	var (
		a    models.Award
		desc sql.NullString
	)
	if err := row.Scan(&a.ID, &a.Title, &desc, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.Description = nullable(desc)
	return &a, nil
}

// entry maps the outcome of a single-row insert or update. A missing row
// on update is ErrEntryNotFound; a foreign key failure on insert means the
// user is gone.
func entry[T any](v *T, err error) (*T, error) {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, ErrEntryNotFound
	case pqCode(err) == codeForeignKeyViolation:
		return nil, ErrUserNotFound
	case err != nil:
		return nil, err
	}
	return v, nil
}

func (r *PostgresRepository) AddWork(ctx context.Context, userID string, in WorkInput) (*models.WorkExperience, error) {
	v, err := scanWork(r.db.QueryRowContext(ctx, `
		INSERT INTO work_experience (id, user_id, organization, role, location, description, start_date, end_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7::date, $8::date)
		RETURNING `+workColumns,
		uuid.NewString(), userID, in.Organization, in.Role, in.Location, in.Description, in.StartDate, in.EndDate))
	return entry(v, err)
}

func (r *PostgresRepository) UpdateWork(ctx context.Context, userID, id string, in WorkInput) (*models.WorkExperience, error) {
	v, err := scanWork(r.db.QueryRowContext(ctx, `
		UPDATE work_experience SET organization = $3, role = $4, location = $5, description = $6,
			start_date = $7::date, end_date = $8::date
		WHERE id = $1 AND user_id = $2
		RETURNING `+workColumns,
		id, userID, in.Organization, in.Role, in.Location, in.Description, in.StartDate, in.EndDate))
	return entry(v, err)
}

func (r *PostgresRepository) DeleteWork(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM work_experience WHERE id = $1 AND user_id = $2`, id, userID)
	return affected(res, err, ErrEntryNotFound)
}

func (r *PostgresRepository) AddEducation(ctx context.Context, userID string, in EducationInput) (*models.Education, error) {
	v, err := scanEducation(r.db.QueryRowContext(ctx, `
		INSERT INTO education (id, user_id, institute, institute_type, description, start_date, end_date)
		VALUES ($1, $2, $3, $4, $5, $6::date, $7::date)
		RETURNING `+educationColumns,
		uuid.NewString(), userID, in.Institute, in.InstituteType, in.Description, in.StartDate, in.EndDate))
	return entry(v, err)
}

func (r *PostgresRepository) UpdateEducation(ctx context.Context, userID, id string, in EducationInput) (*models.Education, error) {
	v, err := scanEducation(r.db.QueryRowContext(ctx, `
		UPDATE education SET institute = $3, institute_type = $4, description = $5,
			start_date = $6::date, end_date = $7::date
		WHERE id = $1 AND user_id = $2
		RETURNING `+educationColumns,
		id, userID, in.Institute, in.InstituteType, in.Description, in.StartDate, in.EndDate))
	return entry(v, err)
}

func (r *PostgresRepository) DeleteEducation(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM education WHERE id = $1 AND user_id = $2`, id, userID)
	return affected(res, err, ErrEntryNotFound)
}

func (r *PostgresRepository) AddAward(ctx context.Context, userID string, in AwardInput) (*models.Award, error) {
	v, err := scanAward(r.db.QueryRowContext(ctx, `
		INSERT INTO awards (id, user_id, title, description) VALUES ($1, $2, $3, $4)
		RETURNING `+awardColumns,
		uuid.NewString(), userID, in.Title, in.Description))
	return entry(v, err)
}

func (r *PostgresRepository) UpdateAward(ctx context.Context, userID, id string, in AwardInput) (*models.Award, error) {
	v, err := scanAward(r.db.QueryRowContext(ctx, `
		UPDATE awards SET title = $3, description = $4 WHERE id = $1 AND user_id = $2
		RETURNING `+awardColumns,
		id, userID, in.Title, in.Description))
	return entry(v, err)
}

func (r *PostgresRepository) DeleteAward(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM awards WHERE id = $1 AND user_id = $2`, id, userID)
	return affected(res, err, ErrEntryNotFound)
}

// loadSections fills the work, education and award lists of u.
func (r *PostgresRepository) loadSections(ctx context.Context, u *models.User) error {
	var err error
	if u.WorkExperience, err = listRows(ctx, r.db, scanWork,
		`SELECT `+workColumns+` FROM work_experience WHERE user_id = $1 ORDER BY start_date DESC, created_at`, u.ID); err != nil {
		return err
	}
	if u.Education, err = listRows(ctx, r.db, scanEducation,
		`SELECT `+educationColumns+` FROM education WHERE user_id = $1 ORDER BY start_date DESC, created_at`, u.ID); err != nil {
		return err
	}
	u.Awards, err = listRows(ctx, r.db, scanAward,
		`SELECT `+awardColumns+` FROM awards WHERE user_id = $1 ORDER BY created_at`, u.ID)
	return err
}

func listRows[T any](ctx context.Context, db *sql.DB, scan func(scanner) (*T, error), query string, args ...interface{}) ([]T, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}
