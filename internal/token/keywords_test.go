package token

import "testing"

func TestKeywordTextIsCanonical(t *testing.T) {
	tests := []struct {
		typ  TokenType
		want string
	}{
		{NASH, "nash"},
		{MIN, "min"},
		{SAMEAS, "sameas"},
		{FEASIBILITY, "feasibility"},
	}
	for _, tt := range tests {
		if got := KeywordText(tt.typ); got != tt.want {
			t.Errorf("KeywordText(%s) = %q, want %q", tt.typ, got, tt.want)
		}
	}
}

func TestEveryReservedWordHasASpelling(t *testing.T) {
	for _, group := range keywordsByInitial {
		for _, kw := range group {
			if kw.typ == LEGACY {
				continue
			}
			name, ok := keywordNames[kw.typ]
			if !ok {
				t.Errorf("%s has no canonical spelling", kw.typ)
				continue
			}
			if got := LookupIdent(name); got != kw.typ {
				t.Errorf("LookupIdent(%q) = %s, want %s", name, got, kw.typ)
			}
		}
	}
	if got := LookupIdent("Equilibrium"); got != NASH {
		t.Errorf("equilibrium alias = %s, want NASH", got)
	}
}
