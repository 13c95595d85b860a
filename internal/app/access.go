package app

import (
	"crypto/subtle"
	"strings"

	"exam-attempt-service/internal/domain"
)

// VerifyAccess checks whether a credential may start an attempt for an exam.
// It is a pure check: it consumes nothing and has no side effects.
func VerifyAccess(exam domain.Exam, cred domain.Credential) error {
	switch exam.AccessType {
	case domain.AccessAnyone, "":
		return nil
	case domain.AccessPasscode:
		if subtle.ConstantTimeCompare([]byte(cred.Passcode), []byte(exam.AccessPasscode)) != 1 {
			return domain.ErrAccessDenied
		}
		return nil
	case domain.AccessIdentifierList:
		if containsNormalized(exam.IdentifierList, cred.Identifier) {
			return nil
		}
		return domain.ErrAccessDenied
	case domain.AccessEmailList:
		if containsNormalized(exam.EmailList, cred.Identifier) {
			return nil
		}
		return domain.ErrAccessDenied
	default:
		return domain.ErrAccessDenied
	}
}

func containsNormalized(list []string, candidate string) bool {
	normalized := normalizeIdentifier(candidate)
	if normalized == "" {
		return false
	}
	for _, entry := range list {
		if normalizeIdentifier(entry) == normalized {
			return true
		}
	}
	return false
}

func normalizeIdentifier(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
