// Package ingestion handles document processing: PDF text extraction,
// adaptive chunking, and the end-to-end ingestion pipeline.
package ingestion

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"
	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
)

// Chunk is a text fragment extracted from one PDF page. The pipeline
// attaches pdf_id/file_name/brain_id before embedding; page_no is set here.
type Chunk struct {
	Content string
	PageNo  int
}

// BaseChunkSize is the spec's reference chunk size in words, used unless a
// document's word density calls for halving it.
const BaseChunkSize = 900

const (
	minOverlap   = 50
	maxOverlap   = 200
	overlapRatio = 0.2
	densityBreak = 1.5
)

// Chunker extracts PDF text and splits it into adaptively sized chunks,
// following the sizing rule: chunk_size halves when the document's total
// word count is more than 1.5x the base size, and overlap is 20% of
// chunk_size clamped to [50, 200].
type Chunker struct {
	baseSize int
}

// NewChunker returns a Chunker using baseSize as its reference chunk size
// (BaseChunkSize if baseSize <= 0).
func NewChunker(baseSize int) *Chunker {
	if baseSize <= 0 {
		baseSize = BaseChunkSize
	}
	return &Chunker{baseSize: baseSize}
}

// Chunk extracts text per page from pdfBytes and splits each page
// recursively on paragraph, then line, then sentence, then word boundaries
// into chunks no larger than the adaptive chunk_size, with adaptive overlap carried
// forward from the end of the previous chunk.
func (c *Chunker) Chunk(pdfBytes []byte) ([]Chunk, error) {
	pages, err := extractPages(pdfBytes)
	if err != nil {
		return nil, fmt.Errorf("extracting PDF text: %w", err)
	}

	totalWords := 0
	for _, p := range pages {
		totalWords += len(strings.Fields(p))
	}
	if totalWords == 0 {
		return nil, nil
	}

	chunkSize := c.baseSize
	if float64(totalWords)/float64(c.baseSize) > densityBreak {
		chunkSize = c.baseSize / 2
	}
	overlap := clamp(int(math.Round(float64(chunkSize)*overlapRatio)), minOverlap, maxOverlap)

	var chunks []Chunk
	for pageNo, text := range pages {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		for _, content := range splitPage(text, chunkSize, overlap) {
			chunks = append(chunks, Chunk{Content: content, PageNo: pageNo + 1})
		}
	}
	return chunks, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// splitPage packs a page's text into word windows of at most targetWords,
// carrying overlapWords of context forward from the previous window. Units
// are found recursively: paragraphs first, falling back to lines, then
// sentences, then raw words for any unit that alone exceeds targetWords.
func splitPage(text string, targetWords, overlapWords int) []string {
	units := splitIntoUnits(text, targetWords)
	if len(units) == 0 {
		return nil
	}

	var chunks []string
	var current []string
	currentWords := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, strings.TrimSpace(strings.Join(current, "\n\n")))
	}

	for _, unit := range units {
		unitWords := len(strings.Fields(unit))
		if currentWords > 0 && currentWords+unitWords > targetWords {
			flush()
			current = carryOverlap(current, overlapWords)
			currentWords = wordCount(current)
		}
		current = append(current, unit)
		currentWords += unitWords
	}
	flush()

	return chunks
}

// splitIntoUnits breaks text into paragraph-sized pieces, recursively
// splitting any paragraph exceeding maxWords via splitUnit's tier chain:
// lines, then sentences, then a hard word window.
func splitIntoUnits(text string, maxWords int) []string {
	var units []string
	for _, p := range strings.Split(text, "\n\n") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		units = append(units, splitUnit(p, maxWords, 0)...)
	}
	return units
}

// splitTiers are tried in order on any unit still over maxWords: first by
// line, then by sentence boundary (neurosnap's trained Punkt-style
// tokenizer, upgrading the fixed-abbreviation-list heuristic a regex split
// would need). The final fallback, a hard word window, is applied directly
// by splitUnit once every tier has failed to make progress.
var splitTiers = []func(string) []string{
	func(s string) []string { return strings.Split(s, "\n") },
	splitSentences,
}

func splitUnit(unit string, maxWords int, tier int) []string {
	if len(strings.Fields(unit)) <= maxWords {
		return []string{unit}
	}
	for ; tier < len(splitTiers); tier++ {
		pieces := splitTiers[tier](unit)
		if len(pieces) <= 1 {
			continue
		}
		var units []string
		for _, piece := range pieces {
			piece = strings.TrimSpace(piece)
			if piece == "" {
				continue
			}
			units = append(units, splitUnit(piece, maxWords, tier+1)...)
		}
		return units
	}
	return windowByWords(unit, maxWords)
}

func windowByWords(unit string, maxWords int) []string {
	words := strings.Fields(unit)
	var units []string
	for i := 0; i < len(words); i += maxWords {
		end := i + maxWords
		if end > len(words) {
			end = len(words)
		}
		units = append(units, strings.Join(words[i:end], " "))
	}
	return units
}

var (
	sentenceTokenizer     *sentences.DefaultSentenceTokenizer
	sentenceTokenizerOnce sync.Once
)

// getSentenceTokenizer lazily loads neurosnap's embedded English abbreviation
// model. Built once per process and reused across every Chunk call.
func getSentenceTokenizer() *sentences.DefaultSentenceTokenizer {
	sentenceTokenizerOnce.Do(func() {
		t, err := english.NewSentenceTokenizer(nil)
		if err != nil {
			return
		}
		sentenceTokenizer = t
	})
	return sentenceTokenizer
}

func splitSentences(text string) []string {
	tok := getSentenceTokenizer()
	if tok == nil {
		return nil
	}
	parts := tok.Tokenize(text)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p.Text))
	}
	return out
}

// carryOverlap returns the trailing overlapWords words of the flushed
// window as the seed for the next one.
func carryOverlap(flushed []string, overlapWords int) []string {
	if overlapWords <= 0 || len(flushed) == 0 {
		return nil
	}
	text := strings.Join(flushed, "\n\n")
	words := strings.Fields(text)
	if len(words) <= overlapWords {
		return []string{text}
	}
	return []string{strings.Join(words[len(words)-overlapWords:], " ")}
}

func wordCount(units []string) int {
	n := 0
	for _, u := range units {
		n += len(strings.Fields(u))
	}
	return n
}

// extractPages returns the native text of every page in a PDF, in order.
// Text elements are grouped into visual lines by Y proximity and ordered
// top-to-bottom, falling back to the library's plain-text extraction when
// a page has no positioned text runs.
func extractPages(pdfBytes []byte) ([]string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(pdfBytes), int64(len(pdfBytes)))
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}

	pages := make([]string, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := extractPageText(page)
		if err != nil {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, text)
	}
	return pages, nil
}

func extractPageText(page pdf.Page) (string, error) {
	content := page.Content()
	if len(content.Text) == 0 {
		return page.GetPlainText(nil)
	}

	const lineTolerance = 3.0
	type visualLine struct {
		y   float64
		buf strings.Builder
	}

	var lines []*visualLine
	var cur *visualLine
	for _, t := range content.Text {
		if cur == nil || math.Abs(t.Y-cur.y) > lineTolerance {
			lines = append(lines, &visualLine{y: t.Y})
			cur = lines[len(lines)-1]
		}
		cur.buf.WriteString(t.S)
	}

	sort.SliceStable(lines, func(i, j int) bool { return lines[i].y > lines[j].y })

	var parts []string
	for _, l := range lines {
		if text := strings.TrimSpace(l.buf.String()); text != "" {
			parts = append(parts, text)
		}
	}

	result := strings.Join(parts, "\n")
	if strings.TrimSpace(result) == "" {
		return page.GetPlainText(nil)
	}
	return result, nil
}
