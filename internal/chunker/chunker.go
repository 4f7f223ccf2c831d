// Package chunker splits cleaned document text into overlapping,
// bounded-length passages with provenance offsets. Splitting is a pure
// function of the input text and configuration: identical inputs always
// produce identical passages.
package chunker

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Config configures the chunker behavior
type Config struct {
	// MaxTokens is the maximum whitespace-delimited tokens per passage
	MaxTokens int

	// OverlapTokens is the token overlap between consecutive passages
	OverlapTokens int
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		MaxTokens:     200,
		OverlapTokens: 40,
	}
}

// Passage is one bounded span of the source text.
// Content is the exact substring text[StartChar:EndChar].
type Passage struct {
	Content   string
	Position  int
	StartChar int
	EndChar   int
}

// Chunker splits text into overlapping passages at sentence boundaries.
// A sentence is only split mid-way when it alone exceeds MaxTokens.
type Chunker struct {
	config Config
}

// New creates a chunker, clamping nonsensical configuration:
// MaxTokens must be positive and OverlapTokens strictly smaller.
func New(config Config) *Chunker {
	if config.MaxTokens <= 0 {
		config.MaxTokens = DefaultConfig().MaxTokens
	}
	if config.OverlapTokens < 0 {
		config.OverlapTokens = 0
	}
	if config.OverlapTokens >= config.MaxTokens {
		config.OverlapTokens = config.MaxTokens / 4
	}
	return &Chunker{config: config}
}

// span is a half-open byte range into the source text
type span struct {
	start, end int
	tokens     int
}

// Split chunks the text into passages. Passages appear in document order,
// char spans are non-decreasing, and consecutive passages share roughly
// OverlapTokens tokens. Empty or whitespace-only input yields nil.
func (c *Chunker) Split(text string) []Passage {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	// Sentence units, with oversized sentences hard-split by words
	var units []span
	for _, s := range splitSentences(text) {
		if s.tokens <= c.config.MaxTokens {
			units = append(units, s)
			continue
		}
		units = append(units, c.hardSplit(text, s)...)
	}

	var passages []Passage
	start := 0
	for start < len(units) {
		end := start
		tokens := units[start].tokens
		for end+1 < len(units) && tokens+units[end+1].tokens <= c.config.MaxTokens {
			end++
			tokens += units[end].tokens
		}

		from, to := units[start].start, units[end].end
		passages = append(passages, Passage{
			Content:   text[from:to],
			Position:  len(passages),
			StartChar: from,
			EndChar:   to,
		})

		if end+1 >= len(units) {
			break
		}

		// Back up from the emitted tail to carry the configured overlap
		// into the next passage, always advancing past the old start.
		next := end + 1
		carried := 0
		for next-1 > start && carried+units[next-1].tokens <= c.config.OverlapTokens {
			next--
			carried += units[next].tokens
		}
		start = next
	}

	return passages
}

// hardSplit breaks one oversized sentence into word windows of at most
// MaxTokens tokens with OverlapTokens overlap.
func (c *Chunker) hardSplit(text string, s span) []span {
	words := wordSpans(text, s.start, s.end)

	step := c.config.MaxTokens - c.config.OverlapTokens
	if step <= 0 {
		step = c.config.MaxTokens
	}

	var out []span
	for i := 0; i < len(words); i += step {
		j := i + c.config.MaxTokens
		if j > len(words) {
			j = len(words)
		}
		out = append(out, span{
			start:  words[i].start,
			end:    words[j-1].end,
			tokens: j - i,
		})
		if j == len(words) {
			break
		}
	}
	return out
}

// splitSentences partitions text into sentence spans. Trailing whitespace
// stays attached to the preceding sentence so spans cover the text without
// gaps. Paragraph breaks always end a sentence.
func splitSentences(text string) []span {
	var out []span
	start := 0
	i := 0
	for i < len(text) {
		ch := text[i]
		boundary := false

		switch ch {
		case '.', '!', '?':
			// Sentence ender followed by whitespace (or end of text)
			if i+1 >= len(text) {
				boundary = true
			} else if sp, _ := isSpaceAt(text, i+1); sp {
				boundary = true
			}
		case '\n':
			if i+1 < len(text) && text[i+1] == '\n' {
				boundary = true
			}
		}

		if boundary {
			// Consume the trailing whitespace run
			j := i + 1
			for j < len(text) {
				sp, size := isSpaceAt(text, j)
				if !sp {
					break
				}
				j += size
			}
			out = append(out, makeSpan(text, start, j))
			start = j
			i = j
			continue
		}
		i++
	}

	if start < len(text) {
		out = append(out, makeSpan(text, start, len(text)))
	}

	// Drop token-less spans (pure whitespace runs at the edges)
	filtered := out[:0]
	for _, s := range out {
		if s.tokens > 0 {
			filtered = append(filtered, s)
		}
	}
	return filtered
}

func makeSpan(text string, start, end int) span {
	return span{
		start:  start,
		end:    end,
		tokens: len(strings.Fields(text[start:end])),
	}
}

// wordSpans returns the byte spans of whitespace-delimited words in
// text[start:end].
func wordSpans(text string, start, end int) []span {
	var out []span
	i := start
	for i < end {
		sp, size := isSpaceAt(text, i)
		if sp {
			i += size
			continue
		}
		w := i
		for i < end {
			sp, size := isSpaceAt(text, i)
			if sp {
				break
			}
			i += size
		}
		out = append(out, span{start: w, end: i, tokens: 1})
	}
	return out
}

// isSpaceAt reports whether a whitespace rune starts at byte offset i
// and how wide it is. Decoding whole runes keeps every span boundary
// off the middle of a multibyte character.
func isSpaceAt(text string, i int) (bool, int) {
	r, size := utf8.DecodeRuneInString(text[i:])
	return unicode.IsSpace(r), size
}
