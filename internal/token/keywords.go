package token

import "strings"

type keyword struct {
	word string
	typ  TokenType
}

// keywordsByInitial is the prefix-dispatch table: reserved words grouped by
// their first letter. Lookup is case-insensitive.
var keywordsByInitial = [26][]keyword{
	'a' - 'a': {{"and", AND}},
	'b' - 'a': {{"bilevel", LEGACY}},
	'c' - 'a': {{"ccf", CCF}, {"complementarity", LEGACY}},
	'd' - 'a': {
		{"def", DEF}, {"default", DEFAULT}, {"dual", DUAL},
		{"dualequ", LEGACY}, {"dualvar", LEGACY}, {"deffn", LEGACY},
		{"disjunction", LEGACY},
	},
	'e' - 'a': {{"equilibrium", NASH}, {"epi", EPI}, {"explicit", LEGACY}, {"expectation", LEGACY}},
	'f' - 'a': {{"feasibility", FEASIBILITY}, {"fenchel", FENCHEL}},
	'i' - 'a': {{"implicit", LEGACY}},
	'j' - 'a': {{"jointprob", LEGACY}},
	'l' - 'a': {{"loop", LOOP}, {"load", LOAD}, {"largest", LARGEST}},
	'm' - 'a': {{"min", MIN}, {"max", MAX}, {"modeltype", LEGACY}},
	'n' - 'a': {{"nash", NASH}, {"not", NOT}},
	'o' - 'a': {{"or", OR}, {"ovf", OVF}, {"objfn", OBJFN}},
	'q' - 'a': {{"qvi", LEGACY}},
	'r' - 'a': {{"root", ROOT}, {"randvar", LEGACY}},
	's' - 'a': {{"sum", SUM}, {"sameas", SAMEAS}, {"sharedequ", LEGACY}, {"stage", LEGACY}},
	'v' - 'a': {{"vi", VI}, {"valfn", VALFN}, {"visol", LEGACY}},
}

// keywordNames is the canonical spelling of each reserved word type.
// Words of keywordsByInitial missing here (equilibrium) are aliases.
var keywordNames = map[TokenType]string{
	AND:         "and",
	CCF:         "ccf",
	DEF:         "def",
	DEFAULT:     "default",
	DUAL:        "dual",
	EPI:         "epi",
	FEASIBILITY: "feasibility",
	FENCHEL:     "fenchel",
	LARGEST:     "largest",
	LOAD:        "load",
	LOOP:        "loop",
	MAX:         "max",
	MIN:         "min",
	NASH:        "nash",
	NOT:         "not",
	OBJFN:       "objfn",
	OR:          "or",
	OVF:         "ovf",
	ROOT:        "root",
	SAMEAS:      "sameas",
	SUM:         "sum",
	VALFN:       "valfn",
	VI:          "vi",
}

// LookupIdent returns the reserved-word type of ident, or IDENT.
func LookupIdent(ident string) TokenType {
	if ident == "" {
		return IDENT
	}
	c := ident[0] | 0x20 // ASCII lower
	if c < 'a' || c > 'z' {
		return IDENT
	}
	for _, kw := range keywordsByInitial[c-'a'] {
		if len(kw.word) == len(ident) && strings.EqualFold(kw.word, ident) {
			return kw.typ
		}
	}
	return IDENT
}

// KeywordText returns the canonical spelling of a reserved word type.
func KeywordText(t TokenType) string {
	if w, ok := keywordNames[t]; ok {
		return w
	}
	return string(t)
}
