// Package card provides the static flashcard corpus.
//
// Cards are immutable and identified by their index into the corpus. The
// corpus is a TSV document, one card per line:
//
//	sentence<TAB>meaning|meaning|...
//
// It is parsed once at startup; card IDs are stable as long as the corpus
// file is only ever appended to.
package card

import (
	"bufio"
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"
)

//go:embed corpus.tsv
var defaultCorpus []byte

// Card is a single flashcard: a sentence and its ordered meanings.
type Card struct {
	ID       int      `json:"id"`
	Sentence string   `json:"sentence"`
	Meanings []string `json:"meanings"`
}

// Corpus is the full ordered card set.
type Corpus struct {
	cards []Card
}

// Load reads a corpus from the TSV file at path. An empty path loads the
// embedded default corpus.
func Load(path string) (*Corpus, error) {
	data := defaultCorpus
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read corpus: %w", err)
		}
	}
	return Parse(data)
}

// Parse builds a corpus from TSV data. Blank lines are skipped; a line
// without a tab separator is a hard error since it would silently shift
// every subsequent card ID.
func Parse(data []byte) (*Corpus, error) {
	var cards []Card

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		sentence, meanings, ok := strings.Cut(line, "\t")
		if !ok {
			return nil, fmt.Errorf("corpus line %d: missing tab separator", lineNo)
		}
		cards = append(cards, Card{
			ID:       len(cards),
			Sentence: sentence,
			Meanings: strings.Split(meanings, "|"),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan corpus: %w", err)
	}
	if len(cards) == 0 {
		return nil, fmt.Errorf("corpus is empty")
	}

	return &Corpus{cards: cards}, nil
}

// Card returns the card with the given ID.
func (c *Corpus) Card(id int) (Card, error) {
	if id < 0 || id >= len(c.cards) {
		return Card{}, fmt.Errorf("card %d: out of range [0, %d)", id, len(c.cards))
	}
	return c.cards[id], nil
}

// Len returns the number of cards in the corpus.
func (c *Corpus) Len() int {
	return len(c.cards)
}
