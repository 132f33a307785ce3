package agreement

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNextVersion(t *testing.T) {
	cases := []struct {
		name     string
		existing []string
		want     string
	}{
		{name: "empty lineage starts at one", existing: nil, want: "1"},
		{name: "increments past the max", existing: []string{"1", "2", "3"}, want: "4"},
		{name: "archived versions are never reused", existing: []string{"1", "3"}, want: "4"},
		{name: "non numeric entries skipped", existing: []string{"1", "draft", ""}, want: "2"},
		{name: "all non numeric", existing: []string{"alpha", "beta"}, want: "1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, NextVersion(tc.existing))
		})
	}
}

func TestSigningComplete(t *testing.T) {
	sig := Signature{SignedAt: mustTime(t, "2026-01-02T10:00:00Z"), TermsDigest: TermsDigest("terms")}

	t.Run("all required signed", func(t *testing.T) {
		s := SigningStatus{
			Required:   []string{"parent", "child"},
			Signatures: map[string]Signature{"parent": sig, "child": sig},
		}
		require.True(t, s.Complete())
	})

	t.Run("missing role", func(t *testing.T) {
		s := SigningStatus{
			Required:   []string{"parent", "child"},
			Signatures: map[string]Signature{"parent": sig},
		}
		require.False(t, s.Complete())
	})

	t.Run("zero signed-at does not count", func(t *testing.T) {
		s := SigningStatus{
			Required:   []string{"parent"},
			Signatures: map[string]Signature{"parent": {TermsDigest: sig.TermsDigest}},
		}
		require.False(t, s.Complete())
	})

	t.Run("no required roles is never complete", func(t *testing.T) {
		require.False(t, SigningStatus{}.Complete())
	})
}

func TestTermsDigestTiesSignatureToText(t *testing.T) {
	a := TermsDigest("bed by 9pm on school nights")
	b := TermsDigest("bed by 10pm on school nights")
	require.NotEqual(t, a, b)
	require.Equal(t, a, TermsDigest("bed by 9pm on school nights"))
	require.Len(t, a, 64)
}
