package bookings

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound       = errors.New("booking not found")
	ErrInvalidRequest = errors.New("invalid booking request")
)

// Repository is the persistence contract for bookings.
type Repository interface {
	Insert(ctx context.Context, b BookingRecord) error
	BackfillCallID(ctx context.Context, tenantID, externalCallID, callID string, now time.Time) (linked int, err error)
	ListByTenant(ctx context.Context, tenantID string, from, to time.Time) ([]BookingRecord, error)
}

// Service creates bookings and maintains the two-phase call link.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// CreateRequest carries the validated-and-sanitized booking arguments.
type CreateRequest struct {
	TenantID string

	CustomerName  string
	CustomerPhone string
	Address       string

	PreferredTime  string
	ServiceSummary string
	Priority       string

	ExternalCallID string
	// CallID is set when the owning call session is already known.
	CallID string
}

// FieldErrors lists the invalid/missing fields of a CreateRequest so the
// caller can build a clarification prompt. It wraps ErrInvalidRequest.
type FieldErrors struct {
	Fields []string
}

func (e *FieldErrors) Error() string {
	return "invalid booking fields: " + strings.Join(e.Fields, ", ")
}

func (e *FieldErrors) Unwrap() error { return ErrInvalidRequest }

// Validate checks required fields and phone plausibility.
func (r CreateRequest) Validate() error {
	var bad []string
	if strings.TrimSpace(r.CustomerName) == "" {
		bad = append(bad, "name")
	}
	if !PlausiblePhone(r.CustomerPhone) {
		bad = append(bad, "phone")
	}
	if strings.TrimSpace(r.Address) == "" {
		bad = append(bad, "address")
	}
	if len(bad) > 0 {
		return &FieldErrors{Fields: bad}
	}
	return nil
}

// Create validates, sanitizes, and persists a booking.
func (s *Service) Create(ctx context.Context, req CreateRequest) (BookingRecord, error) {
	if req.TenantID == "" {
		return BookingRecord{}, ErrInvalidRequest
	}
	if err := req.Validate(); err != nil {
		return BookingRecord{}, err
	}

	now := s.clock().UTC()
	window := SanitizeText(req.PreferredTime, 120)

	b := BookingRecord{
		ID:               uuid.NewString(),
		TenantID:         req.TenantID,
		ConfirmationCode: NewConfirmationCode(),
		WindowText:       window,
		ScheduledStart:   ResolvePreferredStart(window, now),
		CustomerName:     SanitizeText(req.CustomerName, 120),
		CustomerPhone:    strings.TrimSpace(req.CustomerPhone),
		Address:          SanitizeText(req.Address, 240),
		ServiceSummary:   SanitizeText(req.ServiceSummary, 240),
		Priority:         NormalizePriority(strings.ToLower(strings.TrimSpace(req.Priority))),
		Source:           SourceVoiceAI,
		ExternalCallID:   strings.TrimSpace(req.ExternalCallID),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if req.CallID != "" {
		id := req.CallID
		b.CallID = &id
	}

	if err := s.repo.Insert(ctx, b); err != nil {
		return BookingRecord{}, err
	}
	return b, nil
}

// BackfillCallID links unlinked bookings for a finished call. Idempotent:
// already-linked rows are untouched, so replayed reports are harmless.
func (s *Service) BackfillCallID(ctx context.Context, tenantID, externalCallID, callID string) error {
	if tenantID == "" || externalCallID == "" || callID == "" {
		return ErrInvalidRequest
	}
	_, err := s.repo.BackfillCallID(ctx, tenantID, externalCallID, callID, s.clock().UTC())
	return err
}

// ListByTenant returns a tenant's bookings in [from, to).
func (s *Service) ListByTenant(ctx context.Context, tenantID string, from, to time.Time) ([]BookingRecord, error) {
	if tenantID == "" {
		return nil, ErrInvalidRequest
	}
	return s.repo.ListByTenant(ctx, tenantID, from, to)
}

const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// NewConfirmationCode returns an 8-char alphanumeric code. The alphabet
// drops lookalike symbols (O/0, I/1, L) because codes are read aloud.
func NewConfirmationCode() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the process is in serious trouble;
		// fall back to a uuid-derived code rather than crash mid-call.
		u := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
		return u[:8]
	}
	out := make([]byte, 8)
	for i, b := range buf {
		out[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(out)
}

var phoneAllowed = regexp.MustCompile(`^[+0-9][0-9\-\s().]*$`)

// PlausiblePhone accepts anything that looks like a dialable number:
// 7-15 digits with common separators. Transcription is noisy, so this is
// deliberately loose; it exists to catch empty or clearly-garbled input.
func PlausiblePhone(v string) bool {
	v = strings.TrimSpace(v)
	if v == "" || !phoneAllowed.MatchString(v) {
		return false
	}
	digits := 0
	for _, r := range v {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits >= 7 && digits <= 15
}

var controlChars = regexp.MustCompile(`[\x00-\x1f\x7f]`)
var multiSpace = regexp.MustCompile(`\s{2,}`)

// SanitizeText strips control characters, collapses whitespace, and caps
// length. Free-text fields come straight from voice transcription.
func SanitizeText(v string, max int) string {
	v = controlChars.ReplaceAllString(v, " ")
	v = multiSpace.ReplaceAllString(strings.TrimSpace(v), " ")
	if max > 0 && len(v) > max {
		v = v[:max]
	}
	return v
}

var rangeDash = regexp.MustCompile(`(\d)\s*-\s*(\d)`)

// SpeakableWindow rewrites numeric ranges for text-to-speech playback:
// "9-11" reads as "9 to 11" instead of "nine minus eleven".
func SpeakableWindow(v string) string {
	return rangeDash.ReplaceAllString(v, "$1 to $2")
}

var clockPhrase = regexp.MustCompile(`(?i)\b(\d{1,2})(?::(\d{2}))?\s*(am|pm)?\b`)

// ResolvePreferredStart resolves the caller's free-text preferred time
// into a concrete start timestamp. It recognizes "today"/"tomorrow" plus
// an explicit clock hour; anything else falls back to tomorrow 9am local
// to the server.
//
// TODO: replace the fallback with real date parsing (weekday names,
// "next week", relative phrases); the current coverage is the two
// phrasings the assistant prompt asks callers for.
func ResolvePreferredStart(text string, now time.Time) time.Time {
	fallback := time.Date(now.Year(), now.Month(), now.Day(), 9, 0, 0, 0, now.Location()).AddDate(0, 0, 1)

	lower := strings.ToLower(text)
	day := now
	switch {
	case strings.Contains(lower, "tomorrow"):
		day = now.AddDate(0, 0, 1)
	case strings.Contains(lower, "today"):
		day = now
	default:
		return fallback
	}

	m := clockPhrase.FindStringSubmatch(lower)
	if m == nil {
		return time.Date(day.Year(), day.Month(), day.Day(), 9, 0, 0, 0, now.Location())
	}
	hour := atoiSafe(m[1])
	minute := atoiSafe(m[2])
	if m[3] == "pm" && hour < 12 {
		hour += 12
	}
	if m[3] == "am" && hour == 12 {
		hour = 0
	}
	if hour > 23 || minute > 59 {
		return fallback
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, now.Location())
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}

// SpeakableConfirmation renders the booking confirmation for playback.
func SpeakableConfirmation(b BookingRecord) string {
	window := SpeakableWindow(b.WindowText)
	if window == "" {
		window = "tomorrow morning"
	}
	return fmt.Sprintf(
		"You're all set for %s. Your confirmation code is %s. We'll see you then.",
		window, spellOut(b.ConfirmationCode),
	)
}

// spellOut spaces the code characters so TTS reads them individually.
func spellOut(code string) string {
	parts := make([]string, 0, len(code))
	for _, r := range code {
		parts = append(parts, string(r))
	}
	return strings.Join(parts, " ")
}
