package lexical

import (
	"math"
	"sort"
	"strings"
)

// BM25 parameters. k1 controls term-frequency saturation, b controls
// document-length normalization.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// Field weights. Intent keywords are curated goal phrases and dominate
// ranking; the name matters more than prose.
const (
	weightIntent      = 5.0
	weightName        = 2.0
	weightDescription = 1.0
)

// Document is one indexable node projection.
type Document struct {
	NodeID         string
	Seq            int64
	Name           string
	Description    string
	IntentKeywords []string
}

type docEntry struct {
	nodeID string
	seq    int64
	length float64
}

// Builder accumulates documents and produces an immutable Index.
type Builder struct {
	docs     []docEntry
	byID     map[string]int
	postings map[string]map[int]float64
}

// NewBuilder creates an empty index builder.
func NewBuilder() *Builder {
	return &Builder{
		byID:     make(map[string]int),
		postings: make(map[string]map[int]float64),
	}
}

// Index adds a document. Indexing the same node id twice replaces the
// previous version.
func (b *Builder) Index(doc Document) {
	if prev, ok := b.byID[doc.NodeID]; ok {
		b.removeAt(prev)
	}

	idx := len(b.docs)
	b.byID[doc.NodeID] = idx

	entry := docEntry{nodeID: doc.NodeID, seq: doc.Seq}

	add := func(text string, weight float64) {
		for _, term := range Tokenize(text) {
			m := b.postings[term]
			if m == nil {
				m = make(map[int]float64)
				b.postings[term] = m
			}
			m[idx] += weight
			entry.length += weight
		}
	}

	add(doc.Name, weightName)
	add(doc.Description, weightDescription)
	add(strings.Join(doc.IntentKeywords, " "), weightIntent)

	b.docs = append(b.docs, entry)
}

func (b *Builder) removeAt(idx int) {
	for term, m := range b.postings {
		if _, ok := m[idx]; ok {
			delete(m, idx)
			if len(m) == 0 {
				delete(b.postings, term)
			}
		}
	}
	b.docs[idx] = docEntry{}
}

// Build finalizes the builder into an immutable Index. The builder must
// not be used afterwards.
func (b *Builder) Build() *Index {
	total := 0
	var lengthSum float64
	for _, d := range b.docs {
		if d.nodeID == "" {
			continue
		}
		total++
		lengthSum += d.length
	}

	avg := 0.0
	if total > 0 {
		avg = lengthSum / float64(total)
	}

	return &Index{
		docs:     b.docs,
		postings: b.postings,
		docCount: total,
		avgLen:   avg,
	}
}

// Index is an immutable BM25 inverted index over weighted node fields.
// Safe for concurrent reads.
type Index struct {
	docs     []docEntry
	postings map[string]map[int]float64
	docCount int
	avgLen   float64
}

// Result is one ranked lexical match.
type Result struct {
	NodeID string
	Score  float64
	Seq    int64
}

// DocCount returns the number of indexed documents.
func (idx *Index) DocCount() int {
	return idx.docCount
}

// Search ranks documents against natural-language query text. Reserved
// operator tokens are escaped first so they match literally; the query is
// scored as a bag of terms. Never returns an error: an all-stopword query
// simply returns no results.
func (idx *Index) Search(queryText string, topK int) []Result {
	terms := make([]string, 0, 8)
	for _, tok := range lexQuery(EscapeReserved(queryText)) {
		terms = append(terms, tok.text)
	}
	return idx.rank(idx.scoreTerms(terms), topK)
}

// scoreTerms accumulates BM25 contributions per document for a bag of
// terms.
func (idx *Index) scoreTerms(terms []string) map[int]float64 {
	scores := make(map[int]float64)
	for _, term := range terms {
		for docIdx, tf := range idx.postings[term] {
			scores[docIdx] += idx.bm25(term, docIdx, tf)
		}
	}
	return scores
}

// bm25 computes one term's contribution given its weighted frequency in a
// document. Monotonically increasing in tf for a fixed document length.
func (idx *Index) bm25(term string, docIdx int, tf float64) float64 {
	df := float64(len(idx.postings[term]))
	if df == 0 || idx.docCount == 0 || tf == 0 {
		return 0
	}

	idf := math.Log(1 + (float64(idx.docCount)-df+0.5)/(df+0.5))

	avg := idx.avgLen
	if avg == 0 {
		avg = 1
	}
	dl := idx.docs[docIdx].length

	return idf * tf * (bm25K1 + 1) / (tf + bm25K1*(1-bm25B+bm25B*dl/avg))
}

// rank sorts scored documents descending, breaking ties by node creation
// order then id so results are deterministic.
func (idx *Index) rank(scores map[int]float64, topK int) []Result {
	if len(scores) == 0 {
		return []Result{}
	}

	results := make([]Result, 0, len(scores))
	for docIdx, score := range scores {
		d := idx.docs[docIdx]
		if d.nodeID == "" {
			continue
		}
		results = append(results, Result{NodeID: d.nodeID, Score: score, Seq: d.seq})
	}

	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Seq != b.Seq {
			return a.Seq < b.Seq
		}
		return a.NodeID < b.NodeID
	})

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results
}
