package pii

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/cognicore/lexcase/pkg/lexcase/ner"
)

const sample = "被告張三，身分證字號A123456789，電話0912-345-678，住臺北市大安區忠孝東路四段100號，" +
	"電子郵件 zhang@example.com，帳號12345678901234。"

func personRecognizer(names ...string) ner.Recognizer {
	return ner.RecognizerFunc(func(ctx context.Context, text string) ([]ner.Entity, error) {
		var out []ner.Entity
		for _, n := range names {
			if i := strings.Index(text, n); i >= 0 {
				out = append(out, ner.Entity{Type: ner.Person, Text: n, Start: i, End: i + len(n)})
			}
		}
		return out, nil
	})
}

func TestMaskIDNumber(t *testing.T) {
	m := New(DefaultConfig())
	masked, matches := m.Mask(context.Background(), "A123456789")
	if masked != "****6789" {
		t.Errorf("expected ****6789, got %q", masked)
	}
	if len(matches) != 1 || matches[0].Type != IDNumber {
		t.Fatalf("expected one id_number match, got %+v", matches)
	}
}

func TestDetectAllTypes(t *testing.T) {
	m := New(DefaultConfig(), WithRecognizer(personRecognizer("張三")))
	matches := m.Detect(context.Background(), sample)

	want := map[Type]string{
		Name:        "張**",
		IDNumber:    "****6789",
		Phone:       "****-678",
		Address:     "臺北市****",
		Email:       "zha***@example.com",
		BankAccount: "**************",
	}
	got := make(map[Type]string)
	for i, mt := range matches {
		got[mt.Type] = mt.Masked
		if sample[mt.Start:mt.End] != mt.Value {
			t.Errorf("match %d offsets do not slice to value: %+v", i, mt)
		}
		if i > 0 && mt.Start < matches[i-1].End {
			t.Errorf("matches overlap: %+v and %+v", matches[i-1], mt)
		}
	}
	for typ, masked := range want {
		if got[typ] != masked {
			t.Errorf("%s: expected %q, got %q", typ, masked, got[typ])
		}
	}
}

func TestMaskRemovesFullLengthTypes(t *testing.T) {
	cfg := DefaultConfig()
	m := New(cfg, WithCustomPattern("case_ref", regexp.MustCompile(`CASE-\d+`)))
	text := sample + "參考CASE-2021。"

	masked, matches := m.Mask(context.Background(), text)
	if len(matches) == 0 {
		t.Fatal("expected matches")
	}
	for _, mt := range m.Detect(context.Background(), masked) {
		if cfg.FullLength(mt.Type) {
			t.Errorf("full-length type %s re-detected in masked text: %+v", mt.Type, mt)
		}
	}
	if strings.Contains(masked, "12345678901234") || strings.Contains(masked, "CASE-2021") {
		t.Errorf("masked text still contains raw values: %s", masked)
	}
}

func TestOverlapPrefersTypePriority(t *testing.T) {
	m := New(DefaultConfig())
	matches := m.Detect(context.Background(), "電話0912345678。")
	if len(matches) != 1 {
		t.Fatalf("expected one match, got %+v", matches)
	}
	if matches[0].Type != Phone {
		t.Errorf("phone should win over bank_account on identical span, got %s", matches[0].Type)
	}
}

func TestResolveOverlapsLongerSpanWins(t *testing.T) {
	in := []Match{
		{Type: Name, Start: 0, End: 6},
		{Type: Address, Start: 0, End: 18},
		{Type: Phone, Start: 10, End: 20},
		{Type: Email, Start: 20, End: 30},
	}
	out := resolveOverlaps(in)
	if len(out) != 2 {
		t.Fatalf("expected 2 matches, got %+v", out)
	}
	if out[0].Type != Address || out[1].Type != Email {
		t.Errorf("unexpected resolution: %+v", out)
	}
}

func TestRecognizerFailureDegrades(t *testing.T) {
	var degraded int
	failing := ner.RecognizerFunc(func(ctx context.Context, text string) ([]ner.Entity, error) {
		return nil, errors.New("model not loaded")
	})
	m := New(DefaultConfig(), WithRecognizer(failing), WithDegradeHook(func(error) { degraded++ }))

	matches := m.Detect(context.Background(), sample)
	if degraded != 1 {
		t.Errorf("expected degrade hook once, got %d", degraded)
	}
	for _, mt := range matches {
		if mt.Type == Name {
			t.Errorf("no names expected without a recognizer, got %+v", mt)
		}
	}
	if len(matches) == 0 {
		t.Error("regex detection should still run")
	}
}

func TestRenderMask(t *testing.T) {
	tests := []struct {
		format, value, maskChar, want string
	}{
		{"", "12345", "#", "#####"},
		{"{first}**", "王小明", "*", "王**"},
		{"{first}**", "王小明", "X", "王XX"},
		{"{first3}****", "臺北", "*", "臺北****"},
		{"****{last4}", "12", "*", "****12"},
		{"{username_first3}***@{domain}", "ab@x.tw", "*", "ab***@x.tw"},
		{"{username_first3}***@{domain}", "not-an-email", "*", "************"},
		{"[{unknown}]", "abc", "*", "[*]"},
	}
	for _, tt := range tests {
		if got := renderMask(tt.format, tt.value, tt.maskChar); got != tt.want {
			t.Errorf("renderMask(%q, %q, %q) = %q, want %q", tt.format, tt.value, tt.maskChar, got, tt.want)
		}
	}
}

func TestMaskEmptyText(t *testing.T) {
	masked, matches := New(DefaultConfig()).Mask(context.Background(), "")
	if masked != "" || len(matches) != 0 {
		t.Errorf("expected empty result, got %q %v", masked, matches)
	}
}
