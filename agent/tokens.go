package agent

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
)

// TokenCounter counts tokens for prompt budget enforcement.
type TokenCounter interface {
	Count(text string) int
}

var modelEncodings = map[string]string{
	"gpt-4o":        "o200k_base",
	"gpt-4o-mini":   "o200k_base",
	"gpt-4-turbo":   "cl100k_base",
	"gpt-4":         "cl100k_base",
	"gpt-3.5-turbo": "cl100k_base",
}

// tiktokenCounter counts with tiktoken, initialized lazily since the
// encoding data may be downloaded on first use. Falls back to a
// bytes/4 estimate when initialization fails.
type tiktokenCounter struct {
	encoding string
	logger   *zap.Logger

	once    sync.Once
	enc     *tiktoken.Tiktoken
	initErr error
}

// NewTokenCounter creates a counter for the given model.
func NewTokenCounter(model string, logger *zap.Logger) TokenCounter {
	if logger == nil {
		logger = zap.NewNop()
	}
	encoding, ok := modelEncodings[model]
	if !ok {
		encoding = "cl100k_base"
	}
	return &tiktokenCounter{encoding: encoding, logger: logger}
}

func (t *tiktokenCounter) Count(text string) int {
	t.once.Do(func() {
		t.enc, t.initErr = tiktoken.GetEncoding(t.encoding)
		if t.initErr != nil {
			t.logger.Warn("tiktoken init failed, falling back to estimate",
				zap.String("encoding", t.encoding),
				zap.Error(t.initErr))
		}
	})
	if t.initErr != nil || t.enc == nil {
		return len(text) / 4
	}
	return len(t.enc.Encode(text, nil, nil))
}

// CounterFunc adapts a function to the TokenCounter interface.
type CounterFunc func(text string) int

func (f CounterFunc) Count(text string) int { return f(text) }
