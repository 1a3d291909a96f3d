package splitter

import (
	"strings"
	"testing"

	"github.com/dshills/repoingest/internal/tokenizer"
)

func BenchmarkSplit_RuneCounter(b *testing.B) {
	text := strings.Repeat("x", 310_000)
	s := New(runeCounter, 300_000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.Split(text); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSplit_Tiktoken(b *testing.B) {
	counter, _, err := tokenizer.Resolve("text-embedding-3-large")
	if err != nil {
		b.Fatal(err)
	}
	text := strings.Repeat("func handler(w http.ResponseWriter, r *http.Request) {}\n", 2000)
	s := New(counter, 4096)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.Split(text); err != nil {
			b.Fatal(err)
		}
	}
}
