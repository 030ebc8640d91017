package models

import (
	"strings"
	"testing"
	"unicode/utf8"

	"social-app/pkg/testutil"
)

func TestTruncateContent(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"short", strings.Repeat("a", 99), strings.Repeat("a", 99)},
		{"exactly max", strings.Repeat("a", 100), strings.Repeat("a", 100)},
		{"one over", strings.Repeat("a", 101), strings.Repeat("a", 100) + "..."},
		{"multi-byte", strings.Repeat("é", 101), strings.Repeat("é", 100) + "..."},
		{"emoji boundary", strings.Repeat("a", 99) + "😀😀", strings.Repeat("a", 99) + "😀..."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := TruncateContent(tc.in)
			testutil.Assert(t, tc.want, got, "truncated")
			testutil.IsTrue(t, utf8.ValidString(got), "valid utf-8")
		})
	}

	testutil.Assert(t, MaxSnapshotLength+3, utf8.RuneCountInString(TruncateContent(strings.Repeat("x", 150))), "cut length")
}
