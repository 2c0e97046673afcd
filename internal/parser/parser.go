// Package parser reads flashcards out of markdown notes.
//
// A card starts at a "Q:" line. "A:" begins its answer and "C:" an optional
// context block. Lines without a marker continue the block above them, and a
// "---" line or the next "Q:" closes the card.
package parser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/conorfennell/knolstudy/internal/domain"
)

const separator = "---"

type field int

const (
	fieldNone field = iota
	fieldQuestion
	fieldAnswer
	fieldContext
)

var markers = []struct {
	prefix string
	field  field
}{
	{"Q:", fieldQuestion},
	{"A:", fieldAnswer},
	{"C:", fieldContext},
}

// SyntaxError describes a card that could not be turned into a draft.
type SyntaxError struct {
	Line   int
	Reason string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// ParseFile parses the markdown file at path.
func ParseFile(path string) ([]domain.CardDraft, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	drafts, err := Parse(f)
	if err != nil {
		return drafts, fmt.Errorf("%s: %w", path, err)
	}
	return drafts, nil
}

// Parse returns every complete card in r. Cards without an answer are skipped
// and reported as *SyntaxError values joined into the returned error; the
// drafts that did parse are returned alongside it.
func Parse(r io.Reader) ([]domain.CardDraft, error) {
	p := &cardParser{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		p.line++
		p.feed(strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	p.closeCard()
	return p.drafts, errors.Join(p.errs...)
}

type cardParser struct {
	line   int
	start  int
	draft  domain.CardDraft
	active field
	block  []string

	drafts []domain.CardDraft
	errs   []error
}

func (p *cardParser) feed(line string) {
	if strings.TrimSpace(line) == separator {
		p.closeCard()
		return
	}

	for _, m := range markers {
		if !strings.HasPrefix(line, m.prefix) {
			continue
		}
		p.flush()
		if m.field == fieldQuestion {
			p.closeCard()
			p.start = p.line
		} else if p.active == fieldNone {
			p.errs = append(p.errs, &SyntaxError{Line: p.line, Reason: m.prefix + " outside of a card"})
			return
		}
		p.active = m.field
		p.block = append(p.block, strings.TrimPrefix(line[len(m.prefix):], " "))
		return
	}

	if p.active != fieldNone {
		p.block = append(p.block, line)
	}
}

// flush stores the pending block in the field it belongs to.
func (p *cardParser) flush() {
	if len(p.block) == 0 {
		return
	}
	text := strings.TrimSpace(strings.Join(p.block, "\n"))
	switch p.active {
	case fieldQuestion:
		p.draft.Question = text
	case fieldAnswer:
		p.draft.Answer = text
	case fieldContext:
		p.draft.Context = text
	}
	p.block = nil
}

func (p *cardParser) closeCard() {
	p.flush()
	switch {
	case p.active == fieldNone:
	case p.draft.Question == "":
		p.errs = append(p.errs, &SyntaxError{Line: p.start, Reason: "card has an empty question"})
	case p.draft.Answer == "":
		p.errs = append(p.errs, &SyntaxError{Line: p.start, Reason: fmt.Sprintf("card %q has no answer", p.draft.Question)})
	default:
		p.drafts = append(p.drafts, p.draft)
	}
	p.draft = domain.CardDraft{}
	p.active = fieldNone
}
