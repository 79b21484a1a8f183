package domain

import (
	"fmt"
	"strconv"
	"strings"

	dErrors "quorum/pkg/domain-errors"
)

// MembershipNumber is the human-readable identifier a member receives at
// approval. Format: {tenantCode}-{year}-{typeCode}-{sequence}. Sequences are
// allocated per (tenant, year, type) and never reused.
type MembershipNumber string

// FormatMembershipNumber renders a number from its parts. The sequence is
// zero-padded to six digits so numbers sort lexically within a year.
func FormatMembershipNumber(tenantCode string, year int, typeCode string, seq int64) MembershipNumber {
	return MembershipNumber(fmt.Sprintf("%s-%d-%s-%06d", tenantCode, year, typeCode, seq))
}

func (n MembershipNumber) String() string { return string(n) }

func (n MembershipNumber) IsZero() bool { return n == "" }

// Parts splits a membership number back into tenant code, year, type code,
// and sequence. Tenant and type codes must not themselves contain dashes.
func (n MembershipNumber) Parts() (tenantCode string, year int, typeCode string, seq int64, err error) {
	fields := strings.Split(string(n), "-")
	if len(fields) != 4 {
		return "", 0, "", 0, dErrors.Newf(dErrors.CodeBadRequest, "malformed membership number %q", n)
	}
	year, err = strconv.Atoi(fields[1])
	if err != nil {
		return "", 0, "", 0, dErrors.Newf(dErrors.CodeBadRequest, "membership number %q has a non-numeric year", n)
	}
	seq, err = strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return "", 0, "", 0, dErrors.Newf(dErrors.CodeBadRequest, "membership number %q has a non-numeric sequence", n)
	}
	return fields[0], year, fields[2], seq, nil
}
