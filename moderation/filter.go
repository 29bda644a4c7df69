package moderation

import (
	"chat-fanout/errors"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

// lookalikes folds common leet substitutions back to letters before matching.
var lookalikes = map[rune]rune{
	'4': 'a', '@': 'a',
	'3': 'e', '€': 'e',
	'1': 'i', '!': 'i', '|': 'i',
	'0': 'o',
	'5': 's', '$': 's',
}

// Filter masks blacklisted words in message content. Matching ignores case,
// punctuation, spacing and leet substitutions, so "B.4.d" still matches "bad".
// A Filter is immutable once built and safe for concurrent use.
type Filter struct {
	machine *goahocorasick.Machine
	mask    rune
}

func NewFilter(words []string, mask rune) (*Filter, error) {
	patterns := make([][]rune, 0, len(words))
	for _, word := range words {
		folded, _ := fold(word)
		if len(folded) > 0 {
			patterns = append(patterns, folded)
		}
	}
	if len(patterns) == 0 {
		return nil, errors.ErrEmptyWords
	}
	machine := new(goahocorasick.Machine)
	if err := machine.Build(patterns); err != nil {
		return nil, err
	}
	return &Filter{machine: machine, mask: mask}, nil
}

// Censor replaces every original rune covered by a match with the mask rune.
// Content without a match is returned unchanged.
func (f *Filter) Censor(content string) string {
	folded, positions := fold(content)
	if len(folded) == 0 {
		return content
	}
	hits := f.machine.MultiPatternSearch(folded, false)
	if len(hits) == 0 {
		return content
	}

	runes := []rune(content)
	for _, hit := range hits {
		end := hit.Pos + len(hit.Word)
		if hit.Pos < 0 || end > len(positions) {
			continue
		}
		for i := positions[hit.Pos]; i <= positions[end-1]; i++ {
			runes[i] = f.mask
		}
	}
	return string(runes)
}

// fold lowercases, resolves lookalikes and drops noise. positions[i] is the
// index in the original runes of folded[i].
func fold(s string) (folded []rune, positions []int) {
	for i, r := range []rune(s) {
		if letter, ok := lookalikes[r]; ok {
			r = letter
		}
		if unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r) {
			continue
		}
		folded = append(folded, unicode.ToLower(r))
		positions = append(positions, i)
	}
	return folded, positions
}
