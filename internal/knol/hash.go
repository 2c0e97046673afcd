// Package knol fingerprints card drafts so an import never creates the same
// card twice.
package knol

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/conorfennell/knolstudy/internal/domain"
)

// Normalize joins the draft's fields after lowercasing them and collapsing
// every run of whitespace into a single space.
func Normalize(d domain.CardDraft) string {
	parts := []string{d.Question, d.Answer, d.Context}
	for i, p := range parts {
		parts[i] = strings.Join(strings.Fields(strings.ToLower(p)), " ")
	}
	return strings.Join(parts, "\n")
}

// Hash returns the hex SHA-256 of the normalized draft.
func Hash(d domain.CardDraft) string {
	sum := sha256.Sum256([]byte(Normalize(d)))
	return hex.EncodeToString(sum[:])
}

// Dedupe stamps each draft with its hash and drops later copies of a hash
// already seen. It returns the unique drafts in input order and the number
// dropped.
func Dedupe(drafts []domain.CardDraft) ([]domain.CardDraft, int) {
	seen := make(map[string]struct{}, len(drafts))
	unique := make([]domain.CardDraft, 0, len(drafts))
	for _, d := range drafts {
		d.Hash = Hash(d)
		if _, ok := seen[d.Hash]; ok {
			continue
		}
		seen[d.Hash] = struct{}{}
		unique = append(unique, d)
	}
	return unique, len(drafts) - len(unique)
}
