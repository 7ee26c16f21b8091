// Package session defines the short-lived server side records that back login cookies
// and pending one-time code verifications.
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"
)

// Purposes
const (
	PurposeLogin           = "login"
	PurposeOTPVerification = "otp_verification"
)

const idBytes = 32

var ErrNotFound = errors.New("session not found or expired")

type Session struct {
	ID        string    `json:"-"`
	UserID    string    `json:"user_id"`
	TenantID  string    `json:"tenant_id"`
	Purpose   string    `json:"purpose"`
	OTP       string    `json:"otp,omitempty"`
	Role      string    `json:"role"`
	Name      string    `json:"name"`
	Attempts  int       `json:"attempts,omitempty"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

func (s Session) IsLogin() bool { return s.Purpose == PurposeLogin }

// ValidOTPFor reports whether s is a pending verification issued to userID of tenantID.
func (s Session) ValidOTPFor(tenantID, userID string) bool {
	return s.Purpose == PurposeOTPVerification &&
		s.OTP != "" &&
		s.TenantID != "" && s.TenantID == tenantID &&
		s.UserID != "" && s.UserID == userID
}

// Store keeps sessions with a time to live. Implementations must make Destroy
// report true to exactly one caller per stored session.
type Store interface {
	// Create assigns a fresh ID to s and stores it for ttl.
	Create(ctx context.Context, s Session, ttl time.Duration) (Session, error)
	Get(ctx context.Context, id string) (Session, error)
	// Update rewrites an existing session without extending its expiry.
	Update(ctx context.Context, s Session) error
	// Destroy removes the session and reports whether this call removed it.
	Destroy(ctx context.Context, id string) (bool, error)
	TTL(ctx context.Context, id string) (time.Duration, error)
}

// NewID returns a random, URL safe session identifier.
func NewID() (string, error) {
	b := make([]byte, idBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
