package models

import (
	"sort"
	"strings"
	"time"
)

// RecordType defines the semantic type of an encrypted vault record.
// The value determines how the decrypted secret payload must be interpreted.
type RecordType string

const (
	// TypePassword represents site login credentials.
	TypePassword RecordType = "password"

	// TypeCard represents payment card information.
	// All fields are considered highly sensitive and always encrypted.
	TypeCard RecordType = "card"
)

// Valid reports whether t is one of the known record types.
func (t RecordType) Valid() bool {
	return t == TypePassword || t == TypeCard
}

// PasswordData represents decrypted site login credentials.
// This structure is serialized to JSON and sealed inside the record's
// CipherEnvelope when RecordType is TypePassword.
type PasswordData struct {
	// Site is the resource (domain or URL) where the credentials apply.
	Site string `json:"site"`

	// Username is the login identifier used for authentication.
	Username string `json:"username"`

	// Password is the secret credential associated with the username.
	Password string `json:"password"`

	// Notes contains optional free-form text attached to the login.
	Notes string `json:"notes,omitempty"`
}

// CardData represents decrypted payment card information.
// This structure is serialized and stored encrypted.
type CardData struct {
	// Cardholder is the name printed on the card.
	Cardholder string `json:"cardholder"`

	// Number is the primary account number (PAN) of the card.
	Number string `json:"number"`

	// Brand identifies the card network (e.g. Visa, MasterCard).
	Brand string `json:"brand,omitempty"`

	// ExpMonth is the card expiration month.
	ExpMonth string `json:"expMonth"`

	// ExpYear is the card expiration year.
	ExpYear string `json:"expYear"`

	// Code is the card security code (CVV/CVC).
	Code string `json:"code"`
}

// SecretPayload is the portion of a Record that is encrypted at rest.
// Exactly one of the fields is set, matching the record's Type.
type SecretPayload struct {
	Password *PasswordData `json:"password,omitempty"`
	Card     *CardData     `json:"card,omitempty"`
}

// Record is a fully decrypted vault entry: cleartext organizational
// metadata plus the type-specific secret payload.
type Record struct {
	// ID uniquely identifies the record within the vault.
	// Assigned on creation, stable for the record's lifetime.
	ID string `json:"id"`

	Type   RecordType    `json:"type"`
	Secret SecretPayload `json:"secret"`

	// Tags is an order-irrelevant set of lowercase labels.
	Tags []string `json:"tags,omitempty"`

	IsFavorite bool `json:"isFavorite"`

	CreatedAt  time.Time `json:"createdAt"`
	ModifiedAt time.Time `json:"modifiedAt"`

	// AccessCount and LastAccessed track reveals of the secret payload.
	AccessCount  int64      `json:"accessCount"`
	LastAccessed *time.Time `json:"lastAccessed,omitempty"`
}

// StoredRecord is the persisted form of a Record: the same cleartext
// metadata with the secret payload replaced by its CipherEnvelope.
type StoredRecord struct {
	ID string `json:"id"`

	Type RecordType `json:"type"`

	Envelope CipherEnvelope `json:"envelope"`

	Tags       []string  `json:"tags,omitempty"`
	IsFavorite bool      `json:"isFavorite"`
	CreatedAt  time.Time `json:"createdAt"`
	ModifiedAt time.Time `json:"modifiedAt"`

	AccessCount  int64      `json:"accessCount"`
	LastAccessed *time.Time `json:"lastAccessed,omitempty"`
}

// NormalizeTags lowercases, trims, deduplicates and sorts tags.
// Empty entries are dropped. The result is the canonical storage form;
// tag order carries no meaning.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		normalized := strings.ToLower(strings.TrimSpace(tag))
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}

	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}
