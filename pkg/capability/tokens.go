package capability

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter estimates the tokens in a text.
type TokenCounter func(text string) int

// EstimateTokens is the fallback estimate of four characters per token.
func EstimateTokens(text string) int {
	return (utf8.RuneCountInString(text) + 3) / 4
}

// NewTiktokenCounter counts with the cl100k_base encoding. The encoding is
// loaded on first use; if it cannot be loaded the counter falls back to
// EstimateTokens.
func NewTiktokenCounter() TokenCounter {
	var (
		once sync.Once
		enc  *tiktoken.Tiktoken
	)

	return func(text string) int {
		once.Do(func() {
			e, err := tiktoken.GetEncoding("cl100k_base")
			if err == nil {
				enc = e
			}
		})
		if enc == nil {
			return EstimateTokens(text)
		}
		return len(enc.Encode(text, nil, nil))
	}
}
