package utils

import "github.com/google/uuid"

// RecordIDGenerator produces unique, stable record identifiers. UUIDv7 ids
// are time-ordered with a random tail, so same-instant creations under bulk
// import never collide.
type RecordIDGenerator struct {
}

func NewRecordIDGenerator() *RecordIDGenerator {
	return &RecordIDGenerator{}
}

func (g *RecordIDGenerator) Generate() string {
	v7, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return v7.String()
}
