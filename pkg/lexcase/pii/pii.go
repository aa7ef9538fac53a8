// Package pii detects and masks personally identifying information in
// legal text.
package pii

import (
	"context"
	"io"
	"regexp"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/cognicore/lexcase/pkg/lexcase/ner"
)

// Type classifies a PII span.
type Type string

const (
	IDNumber    Type = "id_number"
	Name        Type = "name"
	Address     Type = "address"
	Phone       Type = "phone"
	Email       Type = "email"
	BankAccount Type = "bank_account"
	Custom      Type = "custom"
)

// priority breaks ties between spans with the same start and length.
var priority = map[Type]int{
	IDNumber:    0,
	Email:       1,
	Phone:       2,
	BankAccount: 3,
	Address:     4,
	Name:        5,
	Custom:      6,
}

// Match is one detected PII span. Start and End are byte offsets.
type Match struct {
	Type   Type   `json:"type"`
	Value  string `json:"value"`
	Start  int    `json:"start"`
	End    int    `json:"end"`
	Masked string `json:"masked"`
}

type pattern struct {
	typ  Type
	name string
	re   *regexp.Regexp
}

var builtinPatterns = []pattern{
	{IDNumber, "id_number", regexp.MustCompile(`\b[A-Z][12]\d{8}\b`)},
	{Email, "email", regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)},
	{Phone, "phone", regexp.MustCompile(`\b(?:09\d{2}-?\d{3}-?\d{3}|0[2-8]-?\d{6,8})\b`)},
	{BankAccount, "bank_account", regexp.MustCompile(`\b\d{10,16}\b`)},
	{Address, "address", regexp.MustCompile(
		`\p{Han}{2}[市縣]\p{Han}{1,4}?[區鄉鎮市]\p{Han}{1,10}?(?:大道|路|街|道)` +
			`(?:[一二三四五六七八九十\d]+段)?(?:\d+巷)?(?:\d+弄)?\d+號(?:之\d+)?(?:\d+樓)?`)},
}

// Masker detects and masks PII spans.
type Masker struct {
	cfg       Config
	patterns  []pattern
	ner       ner.Recognizer
	logger    logrus.FieldLogger
	onDegrade func(error)
}

// Option configures a Masker.
type Option func(*Masker)

// WithRecognizer attaches a named-entity capability for names and addresses.
func WithRecognizer(r ner.Recognizer) Option {
	return func(m *Masker) { m.ner = r }
}

// WithCustomPattern adds a pattern whose matches are typed Custom.
func WithCustomPattern(name string, re *regexp.Regexp) Option {
	return func(m *Masker) {
		m.patterns = append(m.patterns, pattern{typ: Custom, name: name, re: re})
	}
}

// WithLogger sets the logger used to report recognizer degradation.
func WithLogger(l logrus.FieldLogger) Option {
	return func(m *Masker) { m.logger = l }
}

// WithDegradeHook is called whenever the recognizer fails and detection
// falls back to patterns only.
func WithDegradeHook(fn func(error)) Option {
	return func(m *Masker) { m.onDegrade = fn }
}

// New creates a Masker.
func New(cfg Config, opts ...Option) *Masker {
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	m := &Masker{
		cfg:      cfg,
		patterns: append([]pattern(nil), builtinPatterns...),
		logger:   discard,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Config returns the masking configuration.
func (m *Masker) Config() Config { return m.cfg }

// Detect returns PII spans sorted by start offset with no overlaps.
func (m *Masker) Detect(ctx context.Context, text string) []Match {
	var candidates []Match
	for _, p := range m.patterns {
		for _, loc := range p.re.FindAllStringIndex(text, -1) {
			candidates = append(candidates, m.newMatch(p.typ, text, loc[0], loc[1]))
		}
	}

	if m.ner != nil {
		ents, err := m.ner.ExtractEntities(ctx, text)
		if err != nil {
			m.logger.WithError(err).Warn("named-entity recognizer unavailable, using pattern matches only")
			if m.onDegrade != nil {
				m.onDegrade(err)
			}
		}
		for _, e := range ents {
			var typ Type
			switch e.Type {
			case ner.Person:
				typ = Name
			case ner.Location:
				typ = Address
			default:
				continue
			}
			if e.Start < 0 || e.End > len(text) || e.Start >= e.End {
				continue
			}
			candidates = append(candidates, m.newMatch(typ, text, e.Start, e.End))
		}
	}

	return resolveOverlaps(candidates)
}

// Mask replaces every detected span with its masked value, working from the
// last span to the first so earlier offsets stay valid.
func (m *Masker) Mask(ctx context.Context, text string) (string, []Match) {
	matches := m.Detect(ctx, text)
	out := text
	for i := len(matches) - 1; i >= 0; i-- {
		mt := matches[i]
		out = out[:mt.Start] + mt.Masked + out[mt.End:]
	}
	return out, matches
}

func (m *Masker) newMatch(typ Type, text string, start, end int) Match {
	value := text[start:end]
	return Match{
		Type:   typ,
		Value:  value,
		Start:  start,
		End:    end,
		Masked: m.cfg.MaskValue(typ, value),
	}
}

func resolveOverlaps(candidates []Match) []Match {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if la, lb := a.End-a.Start, b.End-b.Start; la != lb {
			return la > lb
		}
		return priority[a.Type] < priority[b.Type]
	})
	out := candidates[:0]
	lastEnd := -1
	for _, c := range candidates {
		if c.Start < lastEnd {
			continue
		}
		out = append(out, c)
		lastEnd = c.End
	}
	return out
}
