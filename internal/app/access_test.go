package app_test

import (
	"testing"

	"exam-attempt-service/internal/app"
	"exam-attempt-service/internal/domain"
)

func TestVerifyAccess(t *testing.T) {
	cases := []struct {
		name string
		exam domain.Exam
		cred domain.Credential
		want error
	}{
		{
			name: "anyone always granted",
			exam: domain.Exam{AccessType: domain.AccessAnyone},
			want: nil,
		},
		{
			name: "passcode match",
			exam: domain.Exam{AccessType: domain.AccessPasscode, AccessPasscode: "secret"},
			cred: domain.Credential{Passcode: "secret"},
			want: nil,
		},
		{
			name: "passcode mismatch",
			exam: domain.Exam{AccessType: domain.AccessPasscode, AccessPasscode: "secret"},
			cred: domain.Credential{Passcode: "wrong"},
			want: domain.ErrAccessDenied,
		},
		{
			name: "identifier list is case normalized",
			exam: domain.Exam{AccessType: domain.AccessIdentifierList, IdentifierList: []string{"STU-001"}},
			cred: domain.Credential{Identifier: "  stu-001 "},
			want: nil,
		},
		{
			name: "identifier not listed",
			exam: domain.Exam{AccessType: domain.AccessIdentifierList, IdentifierList: []string{"stu-001"}},
			cred: domain.Credential{Identifier: "stu-002"},
			want: domain.ErrAccessDenied,
		},
		{
			name: "email list match",
			exam: domain.Exam{AccessType: domain.AccessEmailList, EmailList: []string{"Alice@Example.com"}},
			cred: domain.Credential{Identifier: "alice@example.com"},
			want: nil,
		},
		{
			name: "empty identifier denied",
			exam: domain.Exam{AccessType: domain.AccessEmailList, EmailList: []string{""}},
			cred: domain.Credential{},
			want: domain.ErrAccessDenied,
		},
		{
			name: "unknown access type denied",
			exam: domain.Exam{AccessType: "mystery"},
			want: domain.ErrAccessDenied,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := app.VerifyAccess(tc.exam, tc.cred); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}
