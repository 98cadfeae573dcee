// Package token signs and verifies the JWTs that carry identity between
// requests. Every token kind has its own secret, so a token minted for one
// purpose never verifies as another.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind selects the secret and lifetime a token is signed with.
type Kind int

const (
	Access Kind = iota
	Refresh
	PasswordReset
	EmailValidation
	InvitationValidation
)

func (k Kind) String() string {
	switch k {
	case Access:
		return "access"
	case Refresh:
		return "refresh"
	case PasswordReset:
		return "password_reset"
	case EmailValidation:
		return "email_validation"
	case InvitationValidation:
		return "invitation_validation"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Failure classifies why a token did not verify.
type Failure int

const (
	None Failure = iota
	Expired
	InvalidSignature
	NotYetValid
)

func (f Failure) String() string {
	switch f {
	case None:
		return "none"
	case Expired:
		return "expired"
	case InvalidSignature:
		return "invalid_signature"
	case NotYetValid:
		return "not_yet_valid"
	default:
		return "unknown"
	}
}

// Result is the outcome of Verify. SubjectID and ExpiresAt are only set
// when Failure is None.
type Result struct {
	SubjectID string
	ExpiresAt time.Time
	Failure   Failure
}

// Valid reports whether the token verified.
func (r Result) Valid() bool {
	return r.Failure == None
}

// Key is the signing material of one token kind. A zero Lifetime signs
// tokens without an expiry.
type Key struct {
	Secret   string
	Lifetime time.Duration
}

// claims is the wire payload: {"id": "<subject>"} plus registered claims.
type claims struct {
	SubjectID string `json:"id"`
	jwt.RegisteredClaims
}

var (
	errMissingKey   = errors.New("token: missing key")
	errSharedSecret = errors.New("token: secrets must be distinct per kind")
)

// Codec signs and verifies tokens. It holds no mutable state and is safe
// for concurrent use.
type Codec struct {
	keys map[Kind]Key
	now  func() time.Time
}

// Option customises a Codec.
type Option func(*Codec)

// WithClock overrides the time source used for signing and verification.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

// NewCodec builds a Codec for the given keys. Every kind must be present
// with a non-empty secret that no other kind shares.
func NewCodec(keys map[Kind]Key, opts ...Option) (*Codec, error) {
	seen := make(map[string]Kind, len(keys))
	for _, k := range []Kind{Access, Refresh, PasswordReset, EmailValidation, InvitationValidation} {
		key, ok := keys[k]
		if !ok || key.Secret == "" {
			return nil, fmt.Errorf("%w: %s", errMissingKey, k)
		}
		if other, dup := seen[key.Secret]; dup {
			return nil, fmt.Errorf("%w: %s and %s", errSharedSecret, other, k)
		}
		if key.Lifetime < 0 {
			return nil, fmt.Errorf("token: negative lifetime for %s", k)
		}
		seen[key.Secret] = k
	}

	c := &Codec{keys: make(map[Kind]Key, len(keys)), now: time.Now}
	for k, v := range keys {
		c.keys[k] = v
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Lifetime returns the configured lifetime of kind.
func (c *Codec) Lifetime(kind Kind) time.Duration {
	return c.keys[kind].Lifetime
}

// Sign mints a token of the given kind for subjectID. The returned time is
// the embedded expiry, zero when the kind has no lifetime.
func (c *Codec) Sign(kind Kind, subjectID string) (string, time.Time, error) {
	key, ok := c.keys[kind]
	if !ok {
		return "", time.Time{}, fmt.Errorf("%w: %s", errMissingKey, kind)
	}

	now := c.now()
	cl := claims{
		SubjectID: subjectID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	var expiresAt time.Time
	if key.Lifetime > 0 {
		cl.ExpiresAt = jwt.NewNumericDate(now.Add(key.Lifetime))
		expiresAt = cl.ExpiresAt.Time
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, cl).SignedString([]byte(key.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, expiresAt, nil
}

// Verify checks raw against the secret of kind. It never returns an error:
// malformed input, foreign algorithms and tokens of another kind all
// classify as InvalidSignature.
func (c *Codec) Verify(kind Kind, raw string) Result {
	key, ok := c.keys[kind]
	if !ok || raw == "" {
		return Result{Failure: InvalidSignature}
	}

	var cl claims
	_, err := jwt.ParseWithClaims(raw, &cl, func(*jwt.Token) (interface{}, error) {
		return []byte(key.Secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
	)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return Result{Failure: Expired}
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return Result{Failure: NotYetValid}
	default:
		return Result{Failure: InvalidSignature}
	}

	if cl.SubjectID == "" {
		return Result{Failure: InvalidSignature}
	}
	res := Result{SubjectID: cl.SubjectID}
	if cl.ExpiresAt != nil {
		res.ExpiresAt = cl.ExpiresAt.Time
	}
	return res
}
