package agreement

import (
	"encoding/hex"
	"time"

	"golang.org/x/crypto/blake2b"
)

// Signature records one party's sign-off on a draft's terms.
type Signature struct {
	SignedAt    time.Time `json:"signed_at"`
	TermsDigest string    `json:"terms_digest"`
}

// SigningStatus is the signing envelope carried by a draft agreement. It
// names the roles that must sign and the signatures collected so far. The
// activation engine treats it as opaque apart from the Complete predicate.
type SigningStatus struct {
	Required   []string             `json:"required"`
	Signatures map[string]Signature `json:"signatures"`
}

// Complete reports whether every required role has signed. An envelope with
// no required roles is malformed and never complete.
func (s SigningStatus) Complete() bool {
	if len(s.Required) == 0 {
		return false
	}
	for _, role := range s.Required {
		sig, ok := s.Signatures[role]
		if !ok || sig.SignedAt.IsZero() {
			return false
		}
	}
	return true
}

// TermsDigest fingerprints agreement terms so a signature can be tied to the
// exact text that was signed.
func TermsDigest(terms string) string {
	sum := blake2b.Sum256([]byte(terms))
	return hex.EncodeToString(sum[:])
}
