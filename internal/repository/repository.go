package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Hibritu/Secure-National-Exam-Result-Verification-Certificate-Issuance--System/internal/model"
)

var (
	// ErrEmailTaken is returned when a user insert hits the unique email
	// constraint.
	ErrEmailTaken = errors.New("email already registered")

	// ErrCertificateIDTaken signals a certificate id collision. Callers
	// retry with fresh randomness.
	ErrCertificateIDTaken = errors.New("certificate id already in use")
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) CreateUser(ctx context.Context, user model.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, name, email, password_hash, role, approved, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, user.ID, user.Name, user.Email, user.PasswordHash, user.Role, user.Approved, user.CreatedAt)
	if isUniqueViolation(err, "users_email_key") {
		return ErrEmailTaken
	}
	return err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	var user model.User
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, email, password_hash, role, approved, created_at
		FROM users
		WHERE email = $1
	`, email)
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.Approved,
		&user.CreatedAt,
	)
	return user, err
}

func (s *Store) GetUserByID(ctx context.Context, userID string) (model.User, error) {
	var user model.User
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, email, password_hash, role, approved, created_at
		FROM users
		WHERE id = $1
	`, userID)
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.Approved,
		&user.CreatedAt,
	)
	return user, err
}

// ApproveUser flips the approval flag and returns the updated user.
// pgx.ErrNoRows is returned for unknown ids.
func (s *Store) ApproveUser(ctx context.Context, userID string) (model.User, error) {
	var user model.User
	row := s.pool.QueryRow(ctx, `
		UPDATE users
		SET approved = TRUE
		WHERE id = $1
		RETURNING id, name, email, password_hash, role, approved, created_at
	`, userID)
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.Approved,
		&user.CreatedAt,
	)
	return user, err
}

func (s *Store) CreateFingerprint(ctx context.Context, fp model.Fingerprint) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO fingerprints (id, user_id, data, created_at)
		VALUES ($1, $2, $3, $4)
	`, fp.ID, fp.UserID, fp.Data, fp.CreatedAt)
	return err
}

func (s *Store) CreateExamResult(ctx context.Context, result model.ExamResult) error {
	scores, err := json.Marshal(result.Scores)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO exam_results (id, user_id, exam_name, year, scores, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, result.ID, result.UserID, result.ExamName, result.Year, scores, result.CreatedAt)
	return err
}

func (s *Store) GetExamResult(ctx context.Context, resultID string) (model.ExamResult, error) {
	var result model.ExamResult
	var scores []byte
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, exam_name, year, scores, created_at
		FROM exam_results
		WHERE id = $1
	`, resultID)
	err := row.Scan(
		&result.ID,
		&result.UserID,
		&result.ExamName,
		&result.Year,
		&scores,
		&result.CreatedAt,
	)
	if err != nil {
		return result, err
	}
	if err := json.Unmarshal(scores, &result.Scores); err != nil {
		return result, err
	}
	return result, nil
}

func (s *Store) CreateCertificate(ctx context.Context, cert model.Certificate) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO certificates (id, certificate_id, user_id, exam_result_id, issued_at, revoked, revoked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, cert.ID, cert.CertificateID, cert.UserID, cert.ExamResultID, cert.IssuedAt, cert.Revoked, cert.RevokedAt)
	if isUniqueViolation(err, "certificates_certificate_id_key") {
		return ErrCertificateIDTaken
	}
	return err
}

func (s *Store) GetCertificateByPublicID(ctx context.Context, certificateID string) (model.Certificate, error) {
	var cert model.Certificate
	row := s.pool.QueryRow(ctx, `
		SELECT id, certificate_id, user_id, exam_result_id, issued_at, revoked, revoked_at
		FROM certificates
		WHERE certificate_id = $1
	`, certificateID)
	err := row.Scan(
		&cert.ID,
		&cert.CertificateID,
		&cert.UserID,
		&cert.ExamResultID,
		&cert.IssuedAt,
		&cert.Revoked,
		&cert.RevokedAt,
	)
	return cert, err
}

// RevokeCertificate marks an issued certificate revoked. It reports false
// when the id is unknown or the certificate is already revoked, which the
// handler collapses into the same not-found response.
func (s *Store) RevokeCertificate(ctx context.Context, certificateID string, revokedAt time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE certificates
		SET revoked = TRUE, revoked_at = $1
		WHERE certificate_id = $2 AND revoked = FALSE
	`, revokedAt, certificateID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == constraint
	}
	return false
}
