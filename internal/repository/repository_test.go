package repository

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Hibritu/Secure-National-Exam-Result-Verification-Certificate-Issuance--System/internal/crypto"
	"github.com/Hibritu/Secure-National-Exam-Result-Verification-Certificate-Issuance--System/internal/db"
	"github.com/Hibritu/Secure-National-Exam-Result-Verification-Certificate-Issuance--System/internal/model"
)

func TestCreateUserDuplicateEmail(t *testing.T) {
	pool := openTestDB(t)
	defer pool.Close()
	store := NewStore(pool)
	ctx := context.Background()

	user := testUser()
	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatalf("create error: %v", err)
	}

	dup := testUser()
	dup.Email = user.Email
	if err := store.CreateUser(ctx, dup); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestCreateCertificateIDCollision(t *testing.T) {
	pool := openTestDB(t)
	defer pool.Close()
	store := NewStore(pool)
	ctx := context.Background()

	user := testUser()
	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatalf("create user error: %v", err)
	}
	result := model.ExamResult{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		ExamName:  "Finals",
		Year:      2024,
		Scores:    map[string]float64{"math": 90},
		CreatedAt: time.Now().UTC(),
	}
	if err := store.CreateExamResult(ctx, result); err != nil {
		t.Fatalf("create result error: %v", err)
	}

	certificateID, err := crypto.NewCertificateID()
	if err != nil {
		t.Fatalf("id error: %v", err)
	}

	first := model.Certificate{
		ID:            uuid.NewString(),
		CertificateID: certificateID,
		UserID:        user.ID,
		ExamResultID:  result.ID,
		IssuedAt:      time.Now().UTC(),
	}
	if err := store.CreateCertificate(ctx, first); err != nil {
		t.Fatalf("create certificate error: %v", err)
	}

	// A second insert with the same public id must surface the collision
	// sentinel so the issuer retries with fresh randomness.
	second := first
	second.ID = uuid.NewString()
	if err := store.CreateCertificate(ctx, second); !errors.Is(err, ErrCertificateIDTaken) {
		t.Fatalf("expected ErrCertificateIDTaken, got %v", err)
	}

	// The colliding insert left no row behind; the original is intact.
	cert, err := store.GetCertificateByPublicID(ctx, certificateID)
	if err != nil {
		t.Fatalf("lookup error: %v", err)
	}
	if cert.ID != first.ID {
		t.Fatalf("expected original certificate row, got %s", cert.ID)
	}
}

func testUser() model.User {
	return model.User{
		ID:           uuid.NewString(),
		Name:         "Test User",
		Email:        "user." + uuid.NewString() + "@example.local",
		PasswordHash: "not-a-real-hash",
		Role:         model.RoleStudent,
		CreatedAt:    time.Now().UTC(),
	}
}

func openTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("EXAMCERT_TEST_DB")
	if url == "" {
		url = os.Getenv("DATABASE_URL")
	}
	if url == "" {
		t.Skip("EXAMCERT_TEST_DB or DATABASE_URL not set")
	}
	pool, err := db.NewPool(context.Background(), url)
	if err != nil {
		t.Skipf("db unavailable: %v", err)
	}
	if err := db.EnsureSchema(context.Background(), pool); err != nil {
		t.Fatalf("schema bootstrap failed: %v", err)
	}
	return pool
}
