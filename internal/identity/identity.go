// Package identity allocates the human-readable device code and the opaque
// QR token assigned to every device on registration.
package identity

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// MaxSequence is the largest per-faculty, per-year sequence the code format can hold.
	MaxSequence = 9999

	tokenBytes         = 24
	defaultMaxAttempts = 5
)

var (
	// ErrExhausted is returned when no free identifier was found within the attempt budget.
	ErrExhausted = errors.New("identity: no free device identifier")
	// ErrInvalidFacultyCode is returned for a blank faculty code.
	ErrInvalidFacultyCode = errors.New("identity: faculty code is required")
)

// Store answers the uniqueness questions the generator needs.
type Store interface {
	MaxSequence(ctx context.Context, prefix string) (int, error)
	DeviceIDExists(ctx context.Context, deviceID string) (bool, error)
	QRTokenExists(ctx context.Context, token string) (bool, error)
}

// Identity is a freshly allocated pair of identifiers.
type Identity struct {
	DeviceID    string
	QRCodeToken string
	Sequence    int
}

// Generator proposes identifiers that are unused at the time of the check.
// Callers still rely on the database unique constraints to settle races.
type Generator struct {
	maxAttempts int
	newToken    func() (string, error)
}

// NewGenerator builds a generator that tries at most maxAttempts sequences per call.
func NewGenerator(maxAttempts int) *Generator {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &Generator{maxAttempts: maxAttempts, newToken: NewQRToken}
}

// MaxAttempts exposes the configured attempt budget.
func (g *Generator) MaxAttempts() int {
	return g.maxAttempts
}

// Generate returns the next free device code for facultyCode in now's year
// together with a new QR token.
func (g *Generator) Generate(ctx context.Context, store Store, facultyCode string, now time.Time) (Identity, error) {
	code := NormalizeCode(facultyCode)
	if code == "" {
		return Identity{}, ErrInvalidFacultyCode
	}
	year := now.Year()

	highest, err := store.MaxSequence(ctx, Prefix(code, year))
	if err != nil {
		return Identity{}, fmt.Errorf("read highest sequence: %w", err)
	}

	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		seq := highest + 1 + attempt
		if seq > MaxSequence {
			return Identity{}, ErrExhausted
		}

		deviceID := FormatDeviceID(code, year, seq)
		taken, err := store.DeviceIDExists(ctx, deviceID)
		if err != nil {
			return Identity{}, fmt.Errorf("check device id: %w", err)
		}
		if taken {
			continue
		}

		token, err := g.newToken()
		if err != nil {
			return Identity{}, fmt.Errorf("generate qr token: %w", err)
		}
		taken, err = store.QRTokenExists(ctx, token)
		if err != nil {
			return Identity{}, fmt.Errorf("check qr token: %w", err)
		}
		if taken {
			continue
		}

		return Identity{DeviceID: deviceID, QRCodeToken: token, Sequence: seq}, nil
	}

	return Identity{}, ErrExhausted
}

// Retry runs fn until it succeeds, fails with an error isCollision rejects, or
// maxAttempts runs have collided. Each run should use a fresh transaction.
func Retry(ctx context.Context, maxAttempts int, isCollision func(error) bool, fn func(attempt int) error) error {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	var last error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn(attempt)
		if err == nil {
			return nil
		}
		if !isCollision(err) {
			return err
		}
		last = err
	}
	return fmt.Errorf("%w: %w", ErrExhausted, last)
}

// NormalizeCode upper-cases and trims a faculty code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Prefix is the shared leading part of every device code for a faculty and year.
func Prefix(facultyCode string, year int) string {
	return fmt.Sprintf("DEV-%s-%d-", facultyCode, year)
}

// FormatDeviceID renders DEV-{CODE}-{YEAR}-{SEQ} with a zero-padded sequence.
func FormatDeviceID(facultyCode string, year, seq int) string {
	return fmt.Sprintf("%s%04d", Prefix(facultyCode, year), seq)
}

// ParseSequence extracts the trailing sequence from a device code.
func ParseSequence(deviceID string) (int, bool) {
	idx := strings.LastIndex(deviceID, "-")
	if idx < 0 || idx == len(deviceID)-1 {
		return 0, false
	}
	seq, err := strconv.Atoi(deviceID[idx+1:])
	if err != nil || seq < 0 {
		return 0, false
	}
	return seq, true
}

// NewQRToken returns a URL-safe token carrying 192 bits of randomness.
func NewQRToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
