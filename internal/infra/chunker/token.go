// Package chunker splits cleaned document text into overlapping token
// windows sized for embedding.
package chunker

import (
	"regexp"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/yanqian/pdfchat/internal/domain/ingest"
	apperrors "github.com/yanqian/pdfchat/pkg/errors"
)

// Tokenizer abstracts the BPE encoding so tests can substitute a
// deterministic fake.
type Tokenizer interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

type tiktokenTokenizer struct {
	enc *tiktoken.Tiktoken
}

// NewTokenizer returns the tokenizer matching the embedding model, falling
// back to cl100k_base for models tiktoken does not know.
func NewTokenizer(model string) (Tokenizer, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeValidationFailure, "failed to load tokenizer", err)
		}
	}
	return &tiktokenTokenizer{enc: enc}, nil
}

func (t *tiktokenTokenizer) Encode(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

func (t *tiktokenTokenizer) Decode(tokens []int) string {
	return t.enc.Decode(tokens)
}

var (
	spaceRuns   = regexp.MustCompile(`[ \t]+`)
	hyphenBreak = regexp.MustCompile(`(\w+)-\s*\n\s*(\w+)`)
	newlineRuns = regexp.MustCompile(`\n{3,}`)
)

// CleanText normalizes extracted PDF text: runs of spaces and tabs collapse
// to one space, words hyphenated across line breaks are rejoined, and runs
// of blank lines collapse to a single blank line.
func CleanText(text string) string {
	text = spaceRuns.ReplaceAllString(text, " ")
	text = hyphenBreak.ReplaceAllString(text, "$1$2")
	text = newlineRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// TokenChunker produces fixed-size token windows with a fixed overlap.
type TokenChunker struct {
	tok     Tokenizer
	size    int
	overlap int
}

var _ ingest.Chunker = (*TokenChunker)(nil)

func NewTokenChunker(tok Tokenizer, size, overlap int) (*TokenChunker, error) {
	if size <= 0 {
		return nil, apperrors.Wrap(apperrors.CodeValidationFailure, "chunk size must be positive", nil)
	}
	if overlap < 0 || overlap >= size {
		return nil, apperrors.Wrap(apperrors.CodeValidationFailure, "chunk overlap must be smaller than chunk size", nil)
	}
	return &TokenChunker{tok: tok, size: size, overlap: overlap}, nil
}

// Chunk cleans the text and slices it into windows of size tokens that
// advance by size-overlap. Character offsets come from decoding the token
// prefix, so they always agree with what the window decodes to.
func (c *TokenChunker) Chunk(text string) ([]ingest.Chunk, error) {
	cleaned := CleanText(text)
	if cleaned == "" {
		return nil, nil
	}

	tokens := c.tok.Encode(cleaned)
	total := len(tokens)
	if total <= c.size {
		return []ingest.Chunk{{
			Index:      0,
			Text:       cleaned,
			TokenCount: total,
			StartChar:  0,
			EndChar:    len(cleaned),
		}}, nil
	}

	step := c.size - c.overlap
	chunks := []ingest.Chunk{}
	for start := 0; start < total; start += step {
		end := start + c.size
		if end > total {
			end = total
		}
		window := tokens[start:end]
		chunkText := c.tok.Decode(window)

		startChar := 0
		if start > 0 {
			startChar = len(c.tok.Decode(tokens[:start]))
		}

		chunks = append(chunks, ingest.Chunk{
			Index:      len(chunks),
			Text:       chunkText,
			TokenCount: len(window),
			StartChar:  startChar,
			EndChar:    startChar + len(chunkText),
		})

		if end == total {
			break
		}
	}
	return chunks, nil
}
