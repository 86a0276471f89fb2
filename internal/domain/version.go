package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is the optimistic concurrency token of a stored document.
type Version struct {
	SeqNo       int64
	PrimaryTerm int64
	// Version is the engine's monotonically increasing per-document counter.
	Version int64
}

// ETag renders the token as "<seq_no>-<primary_term>".
func (v Version) ETag() string {
	return strconv.FormatInt(v.SeqNo, 10) + "-" + strconv.FormatInt(v.PrimaryTerm, 10)
}

// ParseETag parses a token produced by ETag.
func ParseETag(s string) (Version, error) {
	seq, term, ok := strings.Cut(strings.Trim(s, `"`), "-")
	if !ok {
		return Version{}, fmt.Errorf("malformed etag %q", s)
	}
	seqNo, err := strconv.ParseInt(seq, 10, 64)
	if err != nil || seqNo < 0 {
		return Version{}, fmt.Errorf("malformed etag %q: bad seq_no", s)
	}
	primaryTerm, err := strconv.ParseInt(term, 10, 64)
	if err != nil || primaryTerm < 1 {
		return Version{}, fmt.Errorf("malformed etag %q: bad primary_term", s)
	}
	return Version{SeqNo: seqNo, PrimaryTerm: primaryTerm}, nil
}

// Matches reports whether two tokens refer to the same stored revision.
func (v Version) Matches(other Version) bool {
	return v.SeqNo == other.SeqNo && v.PrimaryTerm == other.PrimaryTerm
}
