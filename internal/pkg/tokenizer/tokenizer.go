// Package tokenizer wraps tiktoken byte-pair encodings.
package tokenizer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

const DefaultEncoding = "cl100k_base"

var offlineOnce sync.Once

// UseOfflineLoader makes every later New read the BPE ranks embedded in the
// binary instead of downloading them.
func UseOfflineLoader() {
	offlineOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})
}

// Tiktoken encodes text with a named tiktoken encoding. Without
// UseOfflineLoader the BPE ranks are downloaded on first use unless
// TIKTOKEN_CACHE_DIR points at a warm cache.
type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

func New(encoding string) (*Tiktoken, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load encoding %s failed: %w", encoding, err)
	}
	return &Tiktoken{enc: enc}, nil
}

func (t *Tiktoken) Encode(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

// Decode returns valid UTF-8. A token slice that starts or ends inside a
// multi-token character has the partial bytes replaced with U+FFFD.
func (t *Tiktoken) Decode(tokens []int) string {
	return strings.ToValidUTF8(t.enc.Decode(tokens), "�")
}

// Count returns the number of tokens in text.
func (t *Tiktoken) Count(text string) int {
	return len(t.Encode(text))
}
