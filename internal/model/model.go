package model

import "time"

const (
	RoleStudent  = "student"
	RoleAdmin    = "admin"
	RoleVerifier = "verifier"
)

func ValidRole(role string) bool {
	switch role {
	case RoleStudent, RoleAdmin, RoleVerifier:
		return true
	default:
		return false
	}
}

type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         string
	Approved     bool
	CreatedAt    time.Time
}

type Fingerprint struct {
	ID        string
	UserID    string
	Data      string
	CreatedAt time.Time
}

type ExamResult struct {
	ID        string
	UserID    string
	ExamName  string
	Year      int
	Scores    map[string]float64
	CreatedAt time.Time
}

// Certificate links a user to one exam result through a public,
// crypto-random certificate id. Revocation is terminal; rows are never
// deleted.
type Certificate struct {
	ID            string
	CertificateID string
	UserID        string
	ExamResultID  string
	IssuedAt      time.Time
	Revoked       bool
	RevokedAt     *time.Time
}
