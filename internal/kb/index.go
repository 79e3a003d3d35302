// Package kb provides a deterministic, concurrency-safe in-memory index over
// the Markdown knowledge-base articles. Articles are split into chunks on
// heading boundaries, long sections are sub-chunked near 500 characters, and
// queries are scored with weighted keyword matching:
//
//   - exact query term in the chunk heading:      +5.0
//   - query term as a heading substring:          +3.0
//   - exact query term in the chunk body:         +2.0
//   - per-occurrence body bonus:                  +0.5 each, capped at 3.0
//   - multi-term boost: score * (1 + 0.2*(n-1)) for n matched terms
//
// The index is immutable after construction and safe for concurrent use.
// No logging happens in the library; callers decide how/what to log.
package kb

import (
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// DefaultTopK is the result cap applied when the caller passes k <= 0.
const DefaultTopK = 3

// Chunk is one searchable section of an article.
type Chunk struct {
	SourceFile string
	Heading    string
	Content    string

	contentLower string
	headingLower string
	contentTerms map[string]struct{}
	headingTerms map[string]struct{}
}

// Result is a ranked chunk with its relevance score, shaped for the API.
type Result struct {
	SourceFile string  `json:"source_file"`
	Heading    string  `json:"heading"`
	Snippet    string  `json:"snippet"`
	Score      float64 `json:"score"`
}

// Index holds the loaded chunks. Construct with Load or NewIndex; zero value
// is an empty index that returns no results.
type Index struct {
	chunks []Chunk
}

var (
	headingRe = regexp.MustCompile(`^(#{1,3})\s+(.+)`)
	wordRe    = regexp.MustCompile(`\b[a-z]+\b`)
)

var stopwords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`a an the is are was were be been being
		have has had do does did will would could should may might must shall
		can need dare to of in for on with at by from as into through during
		before after above below between under again further then once here
		there when where why how all each few more most other some such no nor
		not only own same so than too very just and but if or because until
		while what which who whom this that these those am i me my myself we
		our ours ourselves you your yours yourself yourselves he him his
		himself she her hers herself it its itself they them their theirs
		themselves`) {
		stopwords[w] = struct{}{}
	}
}

// Load reads every *.md file in dir and builds the index. A missing directory
// yields an empty index rather than an error, so a deployment without
// articles still serves (empty) search results.
func Load(dir string) (*Index, error) {
	idx := &Index{}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return idx, nil
		}
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	for _, name := range names {
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		idx.chunks = append(idx.chunks, splitChunks(name, string(raw))...)
	}
	return idx, nil
}

// File is an in-memory article, used by NewIndex.
type File struct {
	Name    string
	Content string
}

// NewIndex builds an index directly from filename -> markdown content pairs,
// in the given order.
func NewIndex(files []File) *Index {
	idx := &Index{}
	for _, f := range files {
		idx.chunks = append(idx.chunks, splitChunks(f.Name, f.Content)...)
	}
	return idx
}

// Len returns the number of indexed chunks.
func (x *Index) Len() int { return len(x.chunks) }

// Search scores every chunk against the query and returns the top k results,
// score descending with document order breaking ties. An empty or
// stopword-only query returns nil.
func (x *Index) Search(query string, k int) []Result {
	if k <= 0 {
		k = DefaultTopK
	}
	terms := tokenize(strings.ToLower(query))
	if len(terms) == 0 || len(x.chunks) == 0 {
		return nil
	}

	var results []Result
	for i := range x.chunks {
		c := &x.chunks[i]
		score := scoreChunk(c, terms)
		if score <= 0 {
			continue
		}
		results = append(results, Result{
			SourceFile: c.SourceFile,
			Heading:    c.Heading,
			Snippet:    makeSnippet(c.Content, terms, 200),
			Score:      math.Round(score*1000) / 1000,
		})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > k {
		results = results[:k]
	}
	return results
}

// splitChunks breaks a markdown document into heading-delimited chunks,
// sub-chunking sections longer than 600 characters near 500 at paragraph
// boundaries. Sections with fewer than 20 body characters are dropped.
func splitChunks(filename, content string) []Chunk {
	var chunks []Chunk
	for _, section := range splitSections(content) {
		section = strings.TrimSpace(section)
		if section == "" {
			continue
		}

		heading := "Introduction"
		body := section
		if m := headingRe.FindStringSubmatchIndex(section); m != nil {
			heading = strings.TrimSpace(section[m[4]:m[5]])
			body = strings.TrimSpace(section[m[1]:])
		}
		if len(body) < 20 {
			continue
		}

		if len(body) > 600 {
			for i, sub := range splitLongSection(body, 500) {
				h := heading
				if i > 0 {
					h = heading + " (cont.)"
				}
				chunks = append(chunks, newChunk(filename, h, sub))
			}
		} else {
			chunks = append(chunks, newChunk(filename, heading, body))
		}
	}
	return chunks
}

// splitSections cuts the document before every line starting with 1-3 '#'
// characters followed by a space.
func splitSections(content string) []string {
	lines := strings.Split(content, "\n")
	var sections []string
	var cur []string
	for _, line := range lines {
		if headingRe.MatchString(line) && len(cur) > 0 {
			sections = append(sections, strings.Join(cur, "\n"))
			cur = cur[:0]
		}
		cur = append(cur, line)
	}
	if len(cur) > 0 {
		sections = append(sections, strings.Join(cur, "\n"))
	}
	return sections
}

// splitLongSection packs paragraphs into chunks of at most maxChars.
func splitLongSection(text string, maxChars int) []string {
	var chunks []string
	var cur string
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if len(cur)+len(para)+2 <= maxChars {
			if cur != "" {
				cur += "\n\n" + para
			} else {
				cur = para
			}
		} else {
			if cur != "" {
				chunks = append(chunks, cur)
			}
			cur = para
		}
	}
	if cur != "" {
		chunks = append(chunks, cur)
	}
	if len(chunks) == 0 {
		if len(text) > maxChars {
			text = text[:maxChars]
		}
		return []string{text}
	}
	return chunks
}

func newChunk(filename, heading, body string) Chunk {
	cl := strings.ToLower(body)
	hl := strings.ToLower(heading)
	return Chunk{
		SourceFile:   filename,
		Heading:      heading,
		Content:      body,
		contentLower: cl,
		headingLower: hl,
		contentTerms: termSet(tokenize(cl)),
		headingTerms: termSet(tokenize(hl)),
	}
}

// tokenize extracts lowercase word tokens, dropping stopwords and words of
// one or two characters.
func tokenize(lower string) []string {
	words := wordRe.FindAllString(lower, -1)
	out := words[:0]
	for _, w := range words {
		if len(w) <= 2 {
			continue
		}
		if _, skip := stopwords[w]; skip {
			continue
		}
		out = append(out, w)
	}
	return out
}

func termSet(terms []string) map[string]struct{} {
	m := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		m[t] = struct{}{}
	}
	return m
}

func scoreChunk(c *Chunk, queryTerms []string) float64 {
	score := 0.0
	for _, term := range queryTerms {
		if _, ok := c.headingTerms[term]; ok {
			score += 5.0
		} else if strings.Contains(c.headingLower, term) {
			score += 3.0
		}
		if _, ok := c.contentTerms[term]; ok {
			score += 2.0
		}
		if strings.Contains(c.contentLower, term) {
			count := strings.Count(c.contentLower, term)
			score += math.Min(float64(count)*0.5, 3.0)
		}
	}

	matched := 0
	for _, term := range queryTerms {
		if strings.Contains(c.contentLower, term) || strings.Contains(c.headingLower, term) {
			matched++
		}
	}
	if matched > 1 {
		score *= 1 + 0.2*float64(matched-1)
	}
	return score
}

// makeSnippet windows the content near the first matching term, trimming to
// word boundaries and adding ellipses on cut edges.
func makeSnippet(content string, queryTerms []string, maxLen int) string {
	lower := strings.ToLower(content)

	best := 0
	for _, term := range queryTerms {
		if pos := strings.Index(lower, term); pos != -1 {
			best = pos - 30
			if best < 0 {
				best = 0
			}
			break
		}
	}

	if len(content) <= maxLen {
		return content
	}

	end := best + maxLen
	if end > len(content) {
		end = len(content)
	}
	snippet := content[best:end]

	if best > 0 {
		if sp := strings.Index(snippet, " "); sp != -1 && sp < 20 {
			snippet = snippet[sp+1:]
		}
		snippet = "..." + snippet
	}
	if best+maxLen < len(content) {
		if sp := strings.LastIndex(snippet, " "); sp > len(snippet)-30 {
			snippet = snippet[:sp]
		}
		snippet += "..."
	}
	return snippet
}
