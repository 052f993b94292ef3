package index

import (
	"fmt"
	"math"
)

// Term is one vocabulary entry.
type Term struct {
	Term   string  `json:"term"`
	Column int     `json:"column"`
	IDF    float64 `json:"idf"`
}

// Vocabulary maps terms to matrix columns. Columns are dense, 0..Len()-1.
type Vocabulary struct {
	terms  []Term
	lookup map[string]int
}

// NewVocabulary indexes terms, which must be ordered by column with no gaps.
func NewVocabulary(terms []Term) (*Vocabulary, error) {
	v := &Vocabulary{
		terms:  make([]Term, len(terms)),
		lookup: make(map[string]int, len(terms)),
	}
	for i, t := range terms {
		if t.Column != i {
			return nil, fmt.Errorf("term %q: column %d out of order, want %d", t.Term, t.Column, i)
		}
		if t.Term == "" {
			return nil, fmt.Errorf("column %d: empty term", i)
		}
		if math.IsNaN(t.IDF) || math.IsInf(t.IDF, 0) || t.IDF <= 0 {
			return nil, fmt.Errorf("term %q: invalid idf %v", t.Term, t.IDF)
		}
		if _, dup := v.lookup[t.Term]; dup {
			return nil, fmt.Errorf("duplicate term %q", t.Term)
		}
		v.terms[i] = t
		v.lookup[t.Term] = i
	}
	return v, nil
}

// Lookup returns the entry for term.
func (v *Vocabulary) Lookup(term string) (Term, bool) {
	i, ok := v.lookup[term]
	if !ok {
		return Term{}, false
	}
	return v.terms[i], true
}

// Len returns the number of terms.
func (v *Vocabulary) Len() int {
	return len(v.terms)
}

// Terms returns a copy of the entries in column order.
func (v *Vocabulary) Terms() []Term {
	out := make([]Term, len(v.terms))
	copy(out, v.terms)
	return out
}
