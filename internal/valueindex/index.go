// Package valueindex maps loose spellings in a question to the canonical values stored
// in the dataset, e.g. "uttar pradesh" to Uttar_Pradesh.
package valueindex

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/blevesearch/bleve"
	"github.com/blevesearch/bleve/analysis/analyzer/custom"
	_ "github.com/blevesearch/bleve/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/analysis/token/lowercase"
	unicodetok "github.com/blevesearch/bleve/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/mapping"
	"github.com/blevesearch/bleve/search/query"
)

const (
	maxHits    = 8
	maxNGram   = 3
	fuzzyAfter = 5 // shortest token length that allows one edit

	valueAnalyzer = "value_text"
)

// Hit is a canonical dataset value referenced by a question.
type Hit struct {
	Field string  `json:"field"`
	Value string  `json:"value"`
	Score float64 `json:"score"`
}

type entry struct {
	Field string `json:"field"`
	Value string `json:"value"`
	Text  string `json:"text"`
	terms int
}

// Index is an in-memory full text index over distinct column values. It is safe for
// concurrent use; Rebuild swaps in a fresh index atomically.
type Index struct {
	mu    sync.RWMutex
	bleve bleve.Index
	meta  map[string]entry
}

// New returns an empty index.
func New() *Index {
	return &Index{meta: map[string]entry{}}
}

// newMapping analyzes value text without stop words so that every question word must
// match a term.
func newMapping() (mapping.IndexMapping, error) {
	m := bleve.NewIndexMapping()
	err := m.AddCustomAnalyzer(valueAnalyzer, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     unicodetok.Name,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, err
	}

	text := bleve.NewTextFieldMapping()
	text.Analyzer = valueAnalyzer
	kw := bleve.NewTextFieldMapping()
	kw.Analyzer = "keyword"

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("text", text)
	doc.AddFieldMappingsAt("field", kw)
	doc.AddFieldMappingsAt("value", kw)

	m.DefaultMapping = doc
	return m, nil
}

// Rebuild replaces the indexed values. values is keyed by column name.
func (x *Index) Rebuild(values map[string][]string) error {
	m, err := newMapping()
	if err != nil {
		return fmt.Errorf("value index mapping: %w", err)
	}
	idx, err := bleve.NewMemOnly(m)
	if err != nil {
		return fmt.Errorf("create value index: %w", err)
	}
	meta := make(map[string]entry)
	batch := idx.NewBatch()
	for field, vals := range values {
		for _, v := range vals {
			text := displayText(v)
			terms := len(tokenize(text))
			if terms == 0 {
				continue
			}
			id := field + ":" + v
			e := entry{Field: field, Value: v, Text: text, terms: terms}
			meta[id] = e
			if err := batch.Index(id, e); err != nil {
				_ = idx.Close()
				return fmt.Errorf("index %s: %w", id, err)
			}
		}
	}
	if err := idx.Batch(batch); err != nil {
		_ = idx.Close()
		return fmt.Errorf("flush value index: %w", err)
	}

	x.mu.Lock()
	old := x.bleve
	x.bleve, x.meta = idx, meta
	x.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	return nil
}

// Len returns the number of indexed values.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.meta)
}

// Lookup returns the canonical values whose every term appears, as a contiguous phrase,
// in question. Matching tolerates one typo in longer words.
func (x *Index) Lookup(question string) ([]Hit, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.bleve == nil {
		return nil, nil
	}

	best := map[string]Hit{}
	for _, gram := range ngrams(tokenize(question), maxNGram) {
		q := bleve.NewMatchQuery(strings.Join(gram, " "))
		q.SetField("text")
		q.SetOperator(query.MatchQueryOperatorAnd)
		if shortest(gram) >= fuzzyAfter {
			q.SetFuzziness(1)
		}
		res, err := x.bleve.Search(bleve.NewSearchRequestOptions(q, maxHits*2, 0, false))
		if err != nil {
			return nil, fmt.Errorf("value lookup: %w", err)
		}
		for _, h := range res.Hits {
			e, ok := x.meta[h.ID]
			if !ok || e.terms != len(gram) {
				continue
			}
			if prev, ok := best[h.ID]; !ok || h.Score > prev.Score {
				best[h.ID] = Hit{Field: e.Field, Value: e.Value, Score: h.Score}
			}
		}
	}

	out := make([]Hit, 0, len(best))
	for _, h := range best {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Value < out[j].Value
	})
	if len(out) > maxHits {
		out = out[:maxHits]
	}
	return out, nil
}

// Close releases the underlying index.
func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.bleve == nil {
		return nil
	}
	err := x.bleve.Close()
	x.bleve = nil
	return err
}

func displayText(v string) string {
	return strings.ToLower(strings.ReplaceAll(v, "_", " "))
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func ngrams(tokens []string, max int) [][]string {
	var out [][]string
	for n := 1; n <= max; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			out = append(out, tokens[i:i+n])
		}
	}
	return out
}

func shortest(tokens []string) int {
	m := -1
	for _, t := range tokens {
		if m < 0 || len(t) < m {
			m = len(t)
		}
	}
	return m
}
