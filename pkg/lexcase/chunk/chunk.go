// Package chunk splits cleaned text into overlapping, sentence-aligned
// chunks for indexing.
package chunk

import (
	"strings"
	"unicode/utf8"

	"github.com/cognicore/lexcase/pkg/lexcase/normalize"
)

// Defaults used when a Splitter field is unset.
const (
	DefaultSize    = 500
	DefaultOverlap = 50
)

// Chunk is one piece of a split text.
type Chunk struct {
	Text  string
	Index int
	Total int
	// Units are the sentence units the chunk is made of.
	Units []string
	// Overlap is the number of leading units repeated from the previous chunk.
	Overlap int
}

// Splitter accumulates sentence units into chunks of at most Size runes,
// seeding each chunk with up to Overlap runes of whole units from the
// previous one.
type Splitter struct {
	Size    int
	Overlap int
}

// Split returns the chunk texts.
func (s Splitter) Split(text string) []string {
	chunks := s.SplitChunks(text)
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}

// SplitChunks returns the chunks with their units and overlap counts.
func (s Splitter) SplitChunks(text string) []Chunk {
	size, overlap := s.bounds()
	units := s.units(text, size)
	if len(units) == 0 {
		return nil
	}

	var (
		chunks  []Chunk
		current []string
		curLen  int
		seeded  int
	)
	for _, u := range units {
		n := utf8.RuneCountInString(u)
		if curLen+n > size && len(current) > 0 {
			chunks = append(chunks, newChunk(current, seeded))

			start, seedLen := len(current), 0
			for j := len(current) - 1; j >= 0; j-- {
				l := seedLen + utf8.RuneCountInString(current[j])
				if l > overlap || l+n > size {
					break
				}
				seedLen = l
				start = j
			}
			current = append([]string(nil), current[start:]...)
			curLen = seedLen
			seeded = len(current)
		}
		current = append(current, u)
		curLen += n
	}
	chunks = append(chunks, newChunk(current, seeded))

	for i := range chunks {
		chunks[i].Index = i
		chunks[i].Total = len(chunks)
	}
	return chunks
}

func (s Splitter) bounds() (size, overlap int) {
	size, overlap = s.Size, s.Overlap
	if size <= 0 {
		size = DefaultSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}
	return size, overlap
}

// units splits text into sentences, hard-splitting any sentence longer
// than size runes.
func (s Splitter) units(text string, size int) []string {
	var out []string
	for _, sent := range normalize.Sentences(text) {
		if utf8.RuneCountInString(sent) <= size {
			out = append(out, sent)
			continue
		}
		start, count := 0, 0
		for pos := range sent {
			if count == size {
				out = append(out, sent[start:pos])
				start, count = pos, 0
			}
			count++
		}
		out = append(out, sent[start:])
	}
	return out
}

func newChunk(units []string, overlap int) Chunk {
	return Chunk{
		Text:    strings.Join(units, ""),
		Units:   append([]string(nil), units...),
		Overlap: overlap,
	}
}
