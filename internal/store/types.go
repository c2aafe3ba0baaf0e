package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/constants"
)

// Profile is the stored record of an enrolled member.
// JSON keys match the human-readable members file.
type Profile struct {
	FullName       string    `json:"Full name" validate:"required"`
	Age            Age       `json:"Age" validate:"required"`
	PhoneNumber    string    `json:"Phone number" validate:"required,number"`
	LastAttendance Timestamp `json:"Last attendance,omitzero"`
}

// Member pairs a profile with its identity key.
type Member struct {
	Key string `json:"key"`
	Profile
}

// Age is kept as text. Older files and API clients send it as a number.
type Age string

func (a *Age) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Age(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("age must be a string or a number: %w", err)
	}
	*a = Age(n.String())
	return nil
}

// Timestamp is a wall-clock time stored as DD-MM-YYYY HH:MM:SS in local time.
type Timestamp struct {
	time.Time
}

// NewTimestamp converts t to local time truncated to whole seconds, the form
// the stored layout can hold.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.Local().Truncate(time.Second)}
}

func (t Timestamp) String() string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(constants.TimestampLayout)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := time.ParseInLocation(constants.TimestampLayout, s, time.Local)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	t.Time = parsed
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks that the mandatory fields are present and the phone number is digits only.
func (p Profile) Validate() error {
	if err := validate.Struct(p); err != nil {
		return &ValidationError{Err: err}
	}
	return nil
}

// DisplayName is the name drawn next to a recognised face.
func (p *Profile) DisplayName() string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(p.FullName)
}

// KeyFromPhone derives an identity key from the last four digits of a phone number.
func KeyFromPhone(phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	if len(phone) < 4 {
		return "", fmt.Errorf("%w: phone number %q is too short to derive a key", ErrValidation, phone)
	}
	if !allDigits(phone) {
		return "", fmt.Errorf("%w: phone number must contain only digits", ErrValidation)
	}
	return phone[len(phone)-4:], nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// NormalizeName prepares a name for comparison (lowercase, no diacritics, spaces for dashes).
func NormalizeName(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	name, _, _ = transform.String(t, name)
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.ReplaceAll(name, "-", " ")
}

// ProfilesFromSeed converts the embedded seed members into profiles stamped with now.
func ProfilesFromSeed(seed config.SeedConfig, now time.Time) map[string]Profile {
	out := make(map[string]Profile, len(seed.Members))
	for key, m := range seed.Members {
		out[key] = Profile{
			FullName:       m.FullName,
			Age:            Age(m.Age),
			PhoneNumber:    m.PhoneNumber,
			LastAttendance: NewTimestamp(now),
		}
	}
	return out
}
