// Package rag holds the pure text-processing steps of document ingestion.
package rag

const DefaultMaxTokens = 512

// Tokenizer converts text to model tokens and back.
type Tokenizer interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

// Chunker splits text into consecutive, non-overlapping windows of at most
// MaxTokens tokens.
type Chunker struct {
	tokenizer Tokenizer
	maxTokens int
}

type ChunkerOption func(*Chunker)

// WithMaxTokens sets the window size. Non-positive values are ignored.
func WithMaxTokens(n int) ChunkerOption {
	return func(c *Chunker) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

func NewChunker(tok Tokenizer, opts ...ChunkerOption) *Chunker {
	c := &Chunker{tokenizer: tok, maxTokens: DefaultMaxTokens}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Chunker) MaxTokens() int {
	return c.maxTokens
}

// Split returns ceil(T/M) chunks for a text of T tokens. Decoding the
// chunks in order and concatenating them reproduces the token sequence.
func (c *Chunker) Split(text string) []string {
	if text == "" {
		return nil
	}
	tokens := c.tokenizer.Encode(text)
	if len(tokens) == 0 {
		return nil
	}
	chunks := make([]string, 0, (len(tokens)+c.maxTokens-1)/c.maxTokens)
	for start := 0; start < len(tokens); start += c.maxTokens {
		end := min(start+c.maxTokens, len(tokens))
		chunks = append(chunks, c.tokenizer.Decode(tokens[start:end]))
	}
	return chunks
}

// CleanText is applied to every chunk before it is embedded. It returns the
// text unchanged.
func CleanText(text string) string {
	return text
}
