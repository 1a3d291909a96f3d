package tokenizer

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tiktoken-go/tokenizer"
)

const (
	StrategyModel    = "model"
	StrategyFallback = "cl100k_base"
	StrategyEstimate = "estimate"

	// charsPerToken is the rough ratio used when no encoding is available
	charsPerToken = 4
)

// ErrUnresolved is returned when no strategy in the chain yields a counter
var ErrUnresolved = errors.New("no tokenizer strategy resolved")

// Counter counts the tokens in a text
type Counter interface {
	Count(text string) (int, error)
}

// CounterFunc adapts a plain function to Counter
type CounterFunc func(text string) (int, error)

func (f CounterFunc) Count(text string) (int, error) {
	return f(text)
}

// Strategy resolves a Counter for a model id
type Strategy struct {
	Name    string
	Resolve func(model string) (Counter, error)
}

// DefaultStrategies returns the resolution chain in priority order: the
// model's own encoding, the cl100k_base encoding, then a length estimate.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: StrategyModel, Resolve: forModel},
		{Name: StrategyFallback, Resolve: cl100k},
		{Name: StrategyEstimate, Resolve: func(string) (Counter, error) {
			return CounterFunc(Estimate), nil
		}},
	}
}

// Resolve walks strategies in order and returns the first counter that
// resolves, along with the winning strategy's name. An empty strategy list
// selects DefaultStrategies.
func Resolve(model string, strategies ...Strategy) (Counter, string, error) {
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}

	var errs []error
	for _, s := range strategies {
		counter, err := s.Resolve(model)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
			continue
		}
		return counter, s.Name, nil
	}

	return nil, "", fmt.Errorf("%w for model %q: %w", ErrUnresolved, model, errors.Join(errs...))
}

// Estimate approximates the token count as one token per four runes
func Estimate(text string) (int, error) {
	n := utf8.RuneCountInString(text)
	return (n + charsPerToken - 1) / charsPerToken, nil
}

// codec wraps a tiktoken codec
type codec struct {
	enc tokenizer.Codec
}

func (c codec) Count(text string) (int, error) {
	ids, _, err := c.enc.Encode(text)
	if err != nil {
		return 0, fmt.Errorf("encode: %w", err)
	}
	return len(ids), nil
}

func forModel(model string) (Counter, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, errors.New("empty model id")
	}
	enc, err := tokenizer.ForModel(tokenizer.Model(model))
	if err != nil {
		if !isOpenAIEmbeddingModel(model) {
			return nil, err
		}
		// OpenAI embedding models tokenize with cl100k_base
		enc, err = tokenizer.Get(tokenizer.Cl100kBase)
		if err != nil {
			return nil, err
		}
	}
	return codec{enc: enc}, nil
}

func isOpenAIEmbeddingModel(model string) bool {
	return strings.HasPrefix(model, "text-embedding-3-") || model == "text-embedding-ada-002"
}

func cl100k(string) (Counter, error) {
	enc, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, err
	}
	return codec{enc: enc}, nil
}
