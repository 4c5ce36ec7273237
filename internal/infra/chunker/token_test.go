package chunker

import (
	"fmt"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/yanqian/pdfchat/pkg/errors"
)

var wordPattern = regexp.MustCompile(` ?[^ ]+`)

// wordTokenizer treats every word as one token. Like the real BPE vocabulary
// a token's text carries its leading space, so decoding a token prefix
// yields exactly the character offset of the next token.
type wordTokenizer struct {
	segments []string
	indexOf  map[string]int
}

func newWordTokenizer() *wordTokenizer {
	return &wordTokenizer{indexOf: make(map[string]int)}
}

func (w *wordTokenizer) Encode(text string) []int {
	segments := wordPattern.FindAllString(text, -1)
	tokens := make([]int, len(segments))
	for i, seg := range segments {
		id, ok := w.indexOf[seg]
		if !ok {
			id = len(w.segments)
			w.segments = append(w.segments, seg)
			w.indexOf[seg] = id
		}
		tokens[i] = id
	}
	return tokens
}

func (w *wordTokenizer) Decode(tokens []int) string {
	var b strings.Builder
	for _, tok := range tokens {
		b.WriteString(w.segments[tok])
	}
	return b.String()
}

func words(n int) string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("w%04d", i)
	}
	return strings.Join(out, " ")
}

func TestCleanText(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"too   many\t\tspaces", "too many spaces"},
		{"hyphen-\nated word", "hyphenated word"},
		{"hyphen- \n  ated word", "hyphenated word"},
		{"a\n\n\n\n\nb", "a\n\nb"},
		{"  padded  ", "padded"},
		{"keep\n\nparagraphs", "keep\n\nparagraphs"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, CleanText(tc.in), "input %q", tc.in)
	}
}

func TestChunkRejectsOverlapNotSmallerThanSize(t *testing.T) {
	_, err := NewTokenChunker(newWordTokenizer(), 512, 512)
	require.True(t, apperrors.IsCode(err, apperrors.CodeValidationFailure))

	_, err = NewTokenChunker(newWordTokenizer(), 512, 600)
	require.True(t, apperrors.IsCode(err, apperrors.CodeValidationFailure))
}

func TestChunkShortTextIsSingleChunk(t *testing.T) {
	c, err := NewTokenChunker(newWordTokenizer(), 512, 100)
	require.NoError(t, err)

	chunks, err := c.Chunk("just a few words")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	require.Equal(t, 0, chunks[0].Index)
	require.Equal(t, "just a few words", chunks[0].Text)
	require.Equal(t, 4, chunks[0].TokenCount)
	require.Equal(t, 0, chunks[0].StartChar)
	require.Equal(t, len("just a few words"), chunks[0].EndChar)
}

func TestChunkEmptyTextYieldsNoChunks(t *testing.T) {
	c, err := NewTokenChunker(newWordTokenizer(), 512, 100)
	require.NoError(t, err)

	chunks, err := c.Chunk("   \n\n  ")
	require.NoError(t, err)
	require.Empty(t, chunks)
}

func TestChunkWindowMath(t *testing.T) {
	// 2048 tokens at size 512 / overlap 100 gives starts at 0, 412, 824,
	// 1236, 1648: five chunks, the last one 400 tokens long.
	c, err := NewTokenChunker(newWordTokenizer(), 512, 100)
	require.NoError(t, err)

	chunks, err := c.Chunk(words(2048))
	require.NoError(t, err)
	require.Len(t, chunks, 5)

	for i, chunk := range chunks[:4] {
		require.Equal(t, i, chunk.Index)
		require.Equal(t, 512, chunk.TokenCount)
	}
	require.Equal(t, 400, chunks[4].TokenCount)

	// First word of each window.
	require.Equal(t, "w0412", strings.Fields(chunks[1].Text)[0])
	require.Equal(t, "w0824", strings.Fields(chunks[2].Text)[0])
	require.Equal(t, "w1236", strings.Fields(chunks[3].Text)[0])
	require.Equal(t, "w1648", strings.Fields(chunks[4].Text)[0])
}

func TestChunkOverlapInvariant(t *testing.T) {
	tok := newWordTokenizer()
	c, err := NewTokenChunker(tok, 512, 100)
	require.NoError(t, err)

	chunks, err := c.Chunk(words(2048))
	require.NoError(t, err)

	for i := 0; i < len(chunks)-1; i++ {
		cur := strings.Fields(chunks[i].Text)
		next := strings.Fields(chunks[i+1].Text)
		tail := cur[len(cur)-100:]
		head := next[:100]
		require.Equal(t, tail, head, "chunks %d and %d must share 100 tokens", i, i+1)
	}
}

func TestChunkOffsetsMatchCleanedText(t *testing.T) {
	tok := newWordTokenizer()
	c, err := NewTokenChunker(tok, 8, 2)
	require.NoError(t, err)

	text := words(30)
	chunks, err := c.Chunk(text)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	cleaned := CleanText(text)
	for _, chunk := range chunks {
		require.Equal(t, chunk.Text, cleaned[chunk.StartChar:chunk.EndChar], "chunk %d offsets", chunk.Index)
	}
}

func TestChunkIsDeterministic(t *testing.T) {
	c, err := NewTokenChunker(newWordTokenizer(), 16, 4)
	require.NoError(t, err)

	text := words(100)
	first, err := c.Chunk(text)
	require.NoError(t, err)
	second, err := c.Chunk(text)
	require.NoError(t, err)
	require.Equal(t, first, second)
}
