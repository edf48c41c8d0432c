package reranker

import (
	"bufio"
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/knoguchi/rag/internal/llm"
	"github.com/knoguchi/rag/internal/vectorstore"
)

// LLMReranker implements RerankerProvider with a cross-encoder-style LLM
// call: the query and every candidate document are placed in a single
// prompt so the model judges relevance with both in view, rather than
// scoring documents independently of one another.
type LLMReranker struct {
	llmClient llm.LLMProvider
	model     string
}

// LLMRerankerOption configures an LLMReranker.
type LLMRerankerOption func(*LLMReranker)

// WithModel overrides the default cross-encoder model name.
func WithModel(model string) LLMRerankerOption {
	return func(r *LLMReranker) {
		r.model = model
	}
}

// NewLLMReranker builds an LLMReranker over the given LLMProvider.
func NewLLMReranker(llmClient llm.LLMProvider, opts ...LLMRerankerOption) *LLMReranker {
	r := &LLMReranker{llmClient: llmClient, model: "llama3.2"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// gradeLine matches one line of the expected response, e.g. "3: 82" or
// "passage 3 - 82". The grade is 0-100.
var gradeLine = regexp.MustCompile(`(\d+)\D+(\d{1,3})\s*$`)

// Rerank scores every document against query in a single LLM call and
// returns the top k sorted descending by grade, stable on ties so the
// original retrieval order survives a tie.
func (r *LLMReranker) Rerank(ctx context.Context, query string, docs []vectorstore.ScoredDoc, k int) ([]vectorstore.ScoredDoc, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	if k <= 0 {
		k = DefaultK
	}
	if k > len(docs) {
		k = len(docs)
	}

	prompt := r.buildPrompt(query, docs)
	opts := llm.GenerateOptions{
		Model:       r.model,
		Temperature: 0.0,
		MaxTokens:   512,
	}
	response, err := r.llmClient.Complete(ctx, prompt, opts)
	if err != nil {
		return nil, fmt.Errorf("cross-encoder rerank: %w", err)
	}

	grades, ok := r.parseGrades(response, len(docs))
	if !ok {
		return r.rankPreservingFallback(docs, k), nil
	}

	graded := make([]vectorstore.ScoredDoc, len(docs))
	for i, d := range docs {
		graded[i] = vectorstore.ScoredDoc{Point: d.Point, Score: grades[i]}
	}

	sort.SliceStable(graded, func(i, j int) bool {
		return graded[i].Score > graded[j].Score
	})

	return graded[:k], nil
}

// buildPrompt asks the model to grade every document 0-100 on a line of its
// own, keyed by passage number, rather than requesting a JSON object — a
// format that degrades more gracefully when a smaller local model wraps its
// output in prose instead of emitting clean JSON.
func (r *LLMReranker) buildPrompt(query string, docs []vectorstore.ScoredDoc) string {
	var sb strings.Builder
	sb.WriteString("You are grading how well each numbered passage answers a question.\n")
	sb.WriteString("Question: ")
	sb.WriteString(query)
	sb.WriteString("\n\n")

	for i, d := range docs {
		content := d.Content
		if len(content) > 400 {
			content = content[:400] + "..."
		}
		fmt.Fprintf(&sb, "Passage %d: %s\n", i, content)
	}

	sb.WriteString("\nGrade every passage above from 0 (answers nothing) to 100 (answers fully).\n")
	sb.WriteString("Respond with exactly one line per passage, in the form:\n")
	sb.WriteString("<passage number>: <grade>\n")
	sb.WriteString("Do not skip a passage and do not add any other text.\n")
	return sb.String()
}

// parseGrades reads one "<index>: <grade>" line per document. It tolerates
// extra prose around the lines it understands (a model commonly prefaces or
// trails its grading with remarks) but requires every document to receive a
// grade; partial output falls back rather than guessing at the rest.
func (r *LLMReranker) parseGrades(response string, numDocs int) ([]float32, bool) {
	seen := make([]bool, numDocs)
	grades := make([]float32, numDocs)

	scanner := bufio.NewScanner(strings.NewReader(response))
	for scanner.Scan() {
		m := gradeLine.FindStringSubmatch(strings.TrimSpace(scanner.Text()))
		if m == nil {
			continue
		}
		idx, err := strconv.Atoi(m[1])
		if err != nil || idx < 0 || idx >= numDocs {
			continue
		}
		grade, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		if grade < 0 {
			grade = 0
		}
		if grade > 100 {
			grade = 100
		}
		grades[idx] = float32(grade) / 100
		seen[idx] = true
	}

	for _, ok := range seen {
		if !ok {
			return nil, false
		}
	}
	return grades, true
}

// rankPreservingFallback is used when the model's response can't be parsed.
// It keeps the retriever's original candidate order rather than reusing the
// raw vector similarity score, since that score lives on a different scale
// than a 0-1 grade and would otherwise silently mix two incomparable
// rankings.
func (r *LLMReranker) rankPreservingFallback(docs []vectorstore.ScoredDoc, k int) []vectorstore.ScoredDoc {
	out := make([]vectorstore.ScoredDoc, k)
	copy(out, docs[:k])
	return out
}

var _ RerankerProvider = (*LLMReranker)(nil)
