package identities

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrNotFound          = errors.New("identity not found")
	ErrDuplicateEmail    = errors.New("a user with this email address has already been registered")
	ErrHasRoles          = errors.New("identity still holds roles")
	QueryTimeoutDuration = time.Second * 5
)

// Identity is one authenticatable account.
type Identity struct {
	ID             uuid.UUID `json:"id"`
	Email          string    `json:"email"`
	Password       password  `json:"-"`
	EmailConfirmed bool      `json:"email_confirmed"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// password keeps the bcrypt hash; the plaintext never leaves Set.
type password struct {
	hash []byte
}

func (p *password) Set(text string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(text), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	p.hash = hash
	return nil
}

func (p *password) Compare(text string) error {
	return bcrypt.CompareHashAndPassword(p.hash, []byte(text))
}

// Hash exposes the stored hash for persistence.
func (p *password) Hash() []byte {
	return p.hash
}

// SetHash loads an already hashed credential, e.g. when scanning a row.
func (p *password) SetHash(hash []byte) {
	p.hash = hash
}

// NormalizeEmail trims and lower-cases an address so uniqueness does not
// depend on how the caller typed it.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
