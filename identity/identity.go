// Package identity derives patient identifiers at registration time.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Prefix starts every generated patient id.
const Prefix = "PAT-"

const digestLength = 8

// Generator produces "PAT-XXXXXXXX" ids from a patient name and the current
// high resolution time. Ids are not guaranteed unique.
type Generator struct {
	now func() time.Time
}

// Option customizes a Generator.
type Option func(*Generator)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

func NewGenerator(opts ...Option) *Generator {
	g := &Generator{now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Generate never fails; an empty name still hashes the timestamp.
func (g *Generator) Generate(patientName string) string {
	now := time.Now
	if g != nil && g.now != nil {
		now = g.now
	}
	return Derive(patientName, now())
}

// Derive is the deterministic core of Generate.
func Derive(patientName string, at time.Time) string {
	sum := sha256.Sum256([]byte(patientName + at.Format(time.RFC3339Nano)))
	digest := hex.EncodeToString(sum[:])
	return Prefix + strings.ToUpper(digest[:digestLength])
}

// Valid reports whether id has the generated shape.
func Valid(id string) bool {
	if !strings.HasPrefix(id, Prefix) || len(id) != len(Prefix)+digestLength {
		return false
	}
	for _, r := range id[len(Prefix):] {
		if !(r >= '0' && r <= '9' || r >= 'A' && r <= 'F') {
			return false
		}
	}
	return true
}
