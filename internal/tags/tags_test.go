package tags

import (
	"strings"
	"testing"
)

func TestNormalize_LowercasesTrimsAndDedupes(t *testing.T) {
	got := Normalize(" Strength, mobility ,STRENGTH,, cardio ")
	want := []string{"strength", "mobility", "cardio"}
	if len(got) != len(want) {
		t.Fatalf("unexpected tokens: %#v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("token %d: got %q want %q", i, got[i], want[i])
		}
	}
}

func TestNormalize_TokensAreClean(t *testing.T) {
	for _, tok := range Normalize("  A , b\t, ,C c ") {
		if tok == "" {
			t.Fatal("empty token survived")
		}
		if tok != strings.TrimSpace(tok) {
			t.Fatalf("untrimmed token: %q", tok)
		}
		if tok != strings.ToLower(tok) {
			t.Fatalf("non-lowercase token: %q", tok)
		}
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	once := Join(Normalize("Strength, Mobility, cardio"))
	twice := Join(Normalize(once))
	if once != twice {
		t.Fatalf("not idempotent: %q vs %q", once, twice)
	}
}

func TestCanonicalize_KeepsDuplicates(t *testing.T) {
	got := Canonicalize("Strength, Mobility ,strength")
	if got != "strength,mobility,strength" {
		t.Fatalf("unexpected canonical form: %q", got)
	}
}

func TestCanonicalize_DropsEmptyTokens(t *testing.T) {
	if got := Canonicalize(" , a ,, b , "); got != "a,b" {
		t.Fatalf("unexpected canonical form: %q", got)
	}
	if got := Canonicalize("  ,  "); got != "" {
		t.Fatalf("expected empty result, got %q", got)
	}
}

func TestContains_CaseInsensitive(t *testing.T) {
	set := []string{"strength", "mobility"}
	if !Contains(set, "Strength") {
		t.Fatal("expected membership for Strength")
	}
	if Contains(set, "cardio") {
		t.Fatal("unexpected membership for cardio")
	}
}
