package graph

import (
	"strings"

	"github.com/irt-labs/studygraph/pkg/common"
)

type tripleKey struct {
	subject   string
	predicate string
	object    string
}

// DedupeTriples collapses triples asserting the same (subject, predicate,
// object) within one document. Overlap text shared between neighbouring
// chunks makes the model re-extract the same fact; the survivor keeps the
// highest confidence seen and the union of all citations, in first-seen
// order.
func DedupeTriples(triples []common.Triple) []common.Triple {
	if len(triples) < 2 {
		return triples
	}

	index := make(map[tripleKey]int, len(triples))
	out := make([]common.Triple, 0, len(triples))

	for _, triple := range triples {
		key := tripleKey{
			subject:   strings.ToLower(triple.Subject),
			predicate: strings.ToLower(triple.Predicate),
			object:    strings.ToLower(triple.Object),
		}
		i, seen := index[key]
		if !seen {
			index[key] = len(out)
			out = append(out, triple)
			continue
		}
		if triple.Confidence > out[i].Confidence {
			out[i].Confidence = triple.Confidence
		}
		out[i].Citations = unionCitations(out[i].Citations, triple.Citations)
	}

	return out
}

func unionCitations(existing, incoming []common.Citation) []common.Citation {
	for _, c := range incoming {
		if !containsCitation(existing, c) {
			existing = append(existing, c)
		}
	}
	return existing
}

func containsCitation(citations []common.Citation, c common.Citation) bool {
	for _, have := range citations {
		if have.Page != c.Page || have.Paragraph != c.Paragraph {
			continue
		}
		if (have.Line == nil) != (c.Line == nil) {
			continue
		}
		if have.Line == nil || *have.Line == *c.Line {
			return true
		}
	}
	return false
}
