package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Hibritu/Secure-National-Exam-Result-Verification-Certificate-Issuance--System/internal/auth"
	"github.com/Hibritu/Secure-National-Exam-Result-Verification-Certificate-Issuance--System/internal/cache"
	"github.com/Hibritu/Secure-National-Exam-Result-Verification-Certificate-Issuance--System/internal/config"
	"github.com/Hibritu/Secure-National-Exam-Result-Verification-Certificate-Issuance--System/internal/crypto"
	"github.com/Hibritu/Secure-National-Exam-Result-Verification-Certificate-Issuance--System/internal/metrics"
	"github.com/Hibritu/Secure-National-Exam-Result-Verification-Certificate-Issuance--System/internal/model"
	"github.com/Hibritu/Secure-National-Exam-Result-Verification-Certificate-Issuance--System/internal/repository"
)

// certIDAttempts bounds retries on a certificate id collision. The id
// space makes more than one retry vanishingly unlikely.
const certIDAttempts = 5

type Server struct {
	cfg     config.Config
	store   *repository.Store
	cache   *cache.VerificationCache
	metrics *metrics.Metrics
}

func NewServer(cfg config.Config, store *repository.Store, verifyCache *cache.VerificationCache, m *metrics.Metrics) *Server {
	return &Server{
		cfg:     cfg,
		store:   store,
		cache:   verifyCache,
		metrics: m,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/auth/register", s.handleRegister)
	r.Post("/auth/login", s.handleLogin)
	r.With(s.authMiddleware, s.requireRole(model.RoleAdmin)).Patch("/auth/approve/{userId}", s.handleApprove)
	r.With(s.authMiddleware).Get("/auth/me", s.handleGetMe)

	r.With(s.authMiddleware, s.requireRole(model.RoleAdmin)).Post("/fingerprint/enroll", s.handleEnrollFingerprint)
	r.With(s.authMiddleware, s.requireRole(model.RoleAdmin)).Post("/results/upload", s.handleUploadResult)

	r.With(s.authMiddleware, s.requireRole(model.RoleAdmin)).Post("/certificates/generate", s.handleGenerateCertificate)
	r.Get("/certificates/verify", s.handleVerifyCertificate)
	r.With(s.authMiddleware, s.requireRole(model.RoleAdmin)).Post("/certificates/{certificateId}/revoke", s.handleRevokeCertificate)

	return r
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

type authResponse struct {
	Token string `json:"token"`
	Role  string `json:"role"`
	ID    string `json:"id"`
}

type userSummary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Approved bool   `json:"approved"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Role = strings.TrimSpace(req.Role)
	if req.Name == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}
	if req.Role == "" {
		req.Role = model.RoleStudent
	}
	if !model.ValidRole(req.Role) {
		writeError(w, http.StatusBadRequest, "invalid_role")
		return
	}

	hash, err := crypto.HashPassword(req.Password, s.cfg.BcryptCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	user := model.User{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         req.Role,
		Approved:     false,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			writeError(w, http.StatusBadRequest, "email_exists")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	// The token is minted before approval; login still enforces the
	// approval flag.
	token, err := s.issueToken(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	writeJSON(w, http.StatusCreated, authResponse{
		Token: token,
		Role:  user.Role,
		ID:    user.ID,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.metrics.IncrementLogin("invalid_credentials")
			writeError(w, http.StatusUnauthorized, "invalid_credentials")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	if !user.Approved {
		s.metrics.IncrementLogin("account_not_approved")
		writeError(w, http.StatusUnauthorized, "account_not_approved")
		return
	}

	if err := crypto.CheckPassword(user.PasswordHash, req.Password); err != nil {
		s.metrics.IncrementLogin("invalid_credentials")
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}

	token, err := s.issueToken(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	s.metrics.IncrementLogin("ok")
	writeJSON(w, http.StatusOK, authResponse{
		Token: token,
		Role:  user.Role,
		ID:    user.ID,
	})
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing_user_id")
		return
	}

	user, err := s.store.ApproveUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "user_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	writeJSON(w, http.StatusOK, userSummary{
		ID:       user.ID,
		Name:     user.Name,
		Email:    user.Email,
		Role:     user.Role,
		Approved: user.Approved,
	})
}

func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "invalid_token")
		return
	}

	user, err := s.store.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "user_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	writeJSON(w, http.StatusOK, userSummary{
		ID:       user.ID,
		Name:     user.Name,
		Email:    user.Email,
		Role:     user.Role,
		Approved: user.Approved,
	})
}

type enrollFingerprintRequest struct {
	UserID string `json:"userId"`
	Data   string `json:"data"`
}

func (s *Server) handleEnrollFingerprint(w http.ResponseWriter, r *http.Request) {
	var req enrollFingerprintRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" || req.Data == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}

	if _, err := s.store.GetUserByID(r.Context(), req.UserID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "user_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	fp := model.Fingerprint{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		Data:      req.Data,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateFingerprint(r.Context(), fp); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"status": "enrolled", "id": fp.ID})
}

type uploadResultRequest struct {
	UserID   string             `json:"userId"`
	ExamName string             `json:"examName"`
	Year     int                `json:"year"`
	Scores   map[string]float64 `json:"scores"`
}

func (s *Server) handleUploadResult(w http.ResponseWriter, r *http.Request) {
	var req uploadResultRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	req.ExamName = strings.TrimSpace(req.ExamName)
	if req.UserID == "" || req.ExamName == "" || req.Year == 0 || len(req.Scores) == 0 {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}

	if _, err := s.store.GetUserByID(r.Context(), req.UserID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "user_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	result := model.ExamResult{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		ExamName:  req.ExamName,
		Year:      req.Year,
		Scores:    req.Scores,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateExamResult(r.Context(), result); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": result.ID})
}

type generateCertificateRequest struct {
	UserID       string `json:"userId"`
	ExamResultID string `json:"examResultId"`
}

func (s *Server) handleGenerateCertificate(w http.ResponseWriter, r *http.Request) {
	var req generateCertificateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	req.ExamResultID = strings.TrimSpace(req.ExamResultID)
	if req.UserID == "" || req.ExamResultID == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}

	if _, err := s.store.GetUserByID(r.Context(), req.UserID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "user_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	if _, err := s.store.GetExamResult(r.Context(), req.ExamResultID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "exam_result_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	for attempt := 0; attempt < certIDAttempts; attempt++ {
		certificateID, err := crypto.NewCertificateID()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "server_error")
			return
		}

		cert := model.Certificate{
			ID:            uuid.NewString(),
			CertificateID: certificateID,
			UserID:        req.UserID,
			ExamResultID:  req.ExamResultID,
			IssuedAt:      time.Now().UTC(),
		}
		err = s.store.CreateCertificate(r.Context(), cert)
		if errors.Is(err, repository.ErrCertificateIDTaken) {
			continue
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "server_error")
			return
		}

		s.metrics.IncrementIssued()
		writeJSON(w, http.StatusCreated, map[string]string{"certificateId": certificateID})
		return
	}

	writeError(w, http.StatusInternalServerError, "server_error")
}

type certificateView struct {
	CertificateID string         `json:"certificateId"`
	User          userSummary    `json:"user"`
	ExamResult    examResultView `json:"examResult"`
	IssuedAt      string         `json:"issuedAt"`
}

type examResultView struct {
	ID       string             `json:"id"`
	ExamName string             `json:"examName"`
	Year     int                `json:"year"`
	Scores   map[string]float64 `json:"scores"`
}

func (s *Server) handleVerifyCertificate(w http.ResponseWriter, r *http.Request) {
	certificateID := strings.TrimSpace(r.URL.Query().Get("certificateId"))
	if certificateID == "" {
		writeError(w, http.StatusBadRequest, "missing_certificate_id")
		return
	}

	var cached certificateView
	if hit, err := s.cache.Get(r.Context(), certificateID, &cached); err == nil && hit {
		s.metrics.IncrementVerification("valid")
		writeJSON(w, http.StatusOK, cached)
		return
	}

	cert, err := s.store.GetCertificateByPublicID(r.Context(), certificateID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.metrics.IncrementVerification("not_valid")
			writeError(w, http.StatusNotFound, "certificate_not_valid")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	// Revoked certificates are indistinguishable from unknown ids.
	if cert.Revoked {
		s.metrics.IncrementVerification("not_valid")
		writeError(w, http.StatusNotFound, "certificate_not_valid")
		return
	}

	user, err := s.store.GetUserByID(r.Context(), cert.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	result, err := s.store.GetExamResult(r.Context(), cert.ExamResultID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	view := certificateView{
		CertificateID: cert.CertificateID,
		User: userSummary{
			ID:       user.ID,
			Name:     user.Name,
			Email:    user.Email,
			Role:     user.Role,
			Approved: user.Approved,
		},
		ExamResult: examResultView{
			ID:       result.ID,
			ExamName: result.ExamName,
			Year:     result.Year,
			Scores:   result.Scores,
		},
		IssuedAt: cert.IssuedAt.UTC().Format(time.RFC3339),
	}

	if s.cache.Enabled() {
		if err := s.cache.Set(r.Context(), certificateID, view); err == nil {
			// A revoke can land between the certificate read and the cache
			// write; re-check so a stale view never outlives that race.
			latest, err := s.store.GetCertificateByPublicID(r.Context(), certificateID)
			if err != nil {
				_ = s.cache.Invalidate(r.Context(), certificateID)
			} else if latest.Revoked {
				_ = s.cache.Invalidate(r.Context(), certificateID)
				s.metrics.IncrementVerification("not_valid")
				writeError(w, http.StatusNotFound, "certificate_not_valid")
				return
			}
		}
	}

	s.metrics.IncrementVerification("valid")
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleRevokeCertificate(w http.ResponseWriter, r *http.Request) {
	certificateID := chi.URLParam(r, "certificateId")
	if certificateID == "" {
		writeError(w, http.StatusBadRequest, "missing_certificate_id")
		return
	}

	revoked, err := s.store.RevokeCertificate(r.Context(), certificateID, time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if !revoked {
		writeError(w, http.StatusNotFound, "certificate_not_valid")
		return
	}

	if err := s.cache.Invalidate(r.Context(), certificateID); err != nil {
		log.Printf("verify cache invalidate failed for %s: %v", certificateID, err)
	}

	s.metrics.IncrementRevoked()
	writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

func (s *Server) issueToken(user model.User) (string, error) {
	return auth.NewAccessToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, s.cfg.AccessTokenTTL, auth.Claims{
		UserID: user.ID,
		Role:   user.Role,
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}

		claims, err := auth.ParseToken(s.cfg.JWTSecret, token)
		if err != nil {
			// Missing, malformed, expired and badly signed tokens all
			// report the same code.
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRole is an exact-match gate; admin does not satisfy a
// verifier-only route.
func (s *Server) requireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := claimsFromContext(r.Context())
			if claims == nil || claims.Role != role {
				writeError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type claimsKey struct{}

func claimsFromContext(ctx context.Context) *auth.Claims {
	value := ctx.Value(claimsKey{})
	claims, _ := value.(*auth.Claims)
	return claims
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
