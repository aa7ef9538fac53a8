package legal

import (
	"testing"
	"time"

	"github.com/cognicore/lexcase/pkg/lexcase/normalize"
	"github.com/cognicore/lexcase/pkg/lexcase/validate"
)

func TestExtractCitations(t *testing.T) {
	text := "本院參照最高法院110年度台上字第1234號判決意旨，被告違反民法第一百八十四條第1項，應負賠償責任。"
	cites := ExtractCitations(text)
	if len(cites) != 2 {
		t.Fatalf("expected 2 citations, got %d: %+v", len(cites), cites)
	}

	c := cites[0]
	if c.Kind != CaseCitation || c.Court != "最高法院" || c.Year != 110 || c.Word != "台上" || c.Number != 1234 {
		t.Errorf("unexpected case citation %+v", c)
	}
	if c.CaseNumber() != "110年度台上字第1234號" {
		t.Errorf("unexpected case number %q", c.CaseNumber())
	}
	if text[c.Start:c.End] != c.Text {
		t.Errorf("offsets do not slice to text: %q vs %q", text[c.Start:c.End], c.Text)
	}

	s := cites[1]
	if s.Kind != StatuteCitation || s.Law != "民法" || s.Article != 184 || s.Paragraph != 1 {
		t.Errorf("unexpected statute citation %+v", s)
	}
	if s.Text != "民法第一百八十四條第1項" {
		t.Errorf("unexpected statute text %q", s.Text)
	}
}

func TestCitationCourtNames(t *testing.T) {
	tests := []struct {
		text  string
		court string
		word  string
		num   int
	}{
		{"本院參酌臺灣高等法院110年度上字第12號", "臺灣高等法院", "上", 12},
		{"臺北地院110年度訴字第1號", "臺北地院", "訴", 1},
		{"經臺灣高院109年度上易字第7號判決確定", "臺灣高院", "上易", 7},
		{"臺灣高等法院臺中分院108年度上字第3號", "臺灣高等法院臺中分院", "上", 3},
	}
	for _, tt := range tests {
		cites := ExtractCitations(tt.text)
		if len(cites) != 1 {
			t.Errorf("%s: expected 1 citation, got %+v", tt.text, cites)
			continue
		}
		c := cites[0]
		if c.Court != tt.court || c.Word != tt.word || c.Number != tt.num {
			t.Errorf("%s: got court=%q word=%q number=%d", tt.text, c.Court, c.Word, c.Number)
		}
		if tt.text[c.Start:c.End] != c.Text {
			t.Errorf("%s: offsets do not slice to text", tt.text)
		}
	}
}

func TestCitationContextWindow(t *testing.T) {
	pad := ""
	for i := 0; i < 150; i++ {
		pad += "文"
	}
	text := pad + "，最高法院99年度台上字第1號，" + pad
	cites := ExtractCitations(text)
	if len(cites) != 1 {
		t.Fatalf("expected 1 citation, got %d", len(cites))
	}
	ctx := []rune(cites[0].Context)
	want := len([]rune(cites[0].Text)) + 2*contextRunes
	if len(ctx) != want {
		t.Errorf("expected %d context runes, got %d", want, len(ctx))
	}
}

func TestParseNumber(t *testing.T) {
	tests := map[string]int{
		"184": 184, "一百八十四": 184, "十五": 15, "二十": 20, "一百零五": 105, "三": 3, "條": 0,
	}
	for in, want := range tests {
		if got := parseNumber(in); got != want {
			t.Errorf("parseNumber(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestStandardize(t *testing.T) {
	text := "兩造系爭契約，原告請求被告給付新台幣十萬元，被告給付遲延。"
	out, terms := DefaultDictionary().Standardize(text)
	if out != "雙方爭議契約，原告要求被告支付新台幣十萬元，被告支付遲延。" {
		t.Errorf("unexpected standardized text %q", out)
	}
	want := []Term{
		{Original: "兩造", Standard: "雙方", Category: "general", Confidence: 1.0, Count: 1},
		{Original: "系爭", Standard: "爭議", Category: "general", Confidence: 1.0, Count: 1},
		{Original: "請求", Standard: "要求", Category: "general", Confidence: 1.0, Count: 1},
		{Original: "給付", Standard: "支付", Category: "general", Confidence: 1.0, Count: 2},
	}
	if len(terms) != len(want) {
		t.Fatalf("expected %d terms, got %+v", len(want), terms)
	}
	for i := range want {
		if terms[i] != want[i] {
			t.Errorf("term %d: expected %+v, got %+v", i, want[i], terms[i])
		}
	}
}

func TestStandardizeLongestMatch(t *testing.T) {
	d := NewDictionary([]DictEntry{
		{Canonical: "要求", Variants: []string{"請求"}, Category: "general"},
		{Canonical: "賠償要求", Variants: []string{"損害賠償請求"}, Category: "tort"},
	})
	out, terms := d.Standardize("提出損害賠償請求")
	if out != "提出賠償要求" {
		t.Errorf("longest variant should win, got %q", out)
	}
	if len(terms) != 1 || terms[0].Category != "tort" {
		t.Errorf("unexpected terms %+v", terms)
	}
}

func TestArguments(t *testing.T) {
	e := NewExtractor(nil)
	text, _ := e.Standardize("原告主張被告應給付貨款。被告抗辯：已依最高法院100年度台上字第1號判決清償。原告請求返還借款。")
	args := e.Arguments(text)
	if len(args) != 3 {
		t.Fatalf("expected 3 arguments, got %d: %+v", len(args), args)
	}
	if args[0].Type != Claim || args[0].Text != "被告應支付貨款" || args[0].Strength != 0.5 {
		t.Errorf("unexpected claim %+v", args[0])
	}
	if args[1].Type != Rebuttal || args[1].Strength != 0.8 || len(args[1].Citations) != 1 {
		t.Errorf("unexpected rebuttal %+v", args[1])
	}
	if args[1].Citations[0].Court != "最高法院" {
		t.Errorf("unexpected court %q", args[1].Citations[0].Court)
	}
	if args[2].Type != Request || args[2].Text != "返還借款" {
		t.Errorf("request marker should survive standardization, got %+v", args[2])
	}
}

func TestTimelineSorted(t *testing.T) {
	text := "被告於110年3月5日付款。原告於2020年1月2日起訴。民國109年12月31日雙方簽約。"
	tl := NewExtractor(nil).Timeline(text)
	if len(tl) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(tl))
	}
	wantYears := []int{2020, 109, 110}
	for i, e := range tl {
		if e.Date.Year != wantYears[i] {
			t.Errorf("entry %d: expected raw year %d, got %d", i, wantYears[i], e.Date.Year)
		}
		if i > 0 && e.Date.Gregorian().Before(tl[i-1].Date.Gregorian()) {
			t.Errorf("timeline not sorted at %d", i)
		}
	}
	if tl[0].Date.ROC || !tl[1].Date.ROC || !tl[2].Date.ROC {
		t.Errorf("unexpected era flags: %+v", tl)
	}
	if want := time.Date(2020, 12, 31, 0, 0, 0, 0, time.UTC); !tl[1].Date.Gregorian().Equal(want) {
		t.Errorf("expected %v, got %v", want, tl[1].Date.Gregorian())
	}
}

func TestPartiesRoles(t *testing.T) {
	parties := NewExtractor(nil).Parties("被上訴人：周二，上訴人：林一。")
	if len(parties) != 2 {
		t.Fatalf("expected 2 parties, got %+v", parties)
	}
	if parties[0].Name != "周二" || parties[0].Role != "被上訴人" {
		t.Errorf("被上訴人 must not be read as 上訴人: %+v", parties[0])
	}
	if parties[1].Name != "林一" || parties[1].Role != "上訴人" {
		t.Errorf("unexpected party %+v", parties[1])
	}
}

func TestPartyRelationships(t *testing.T) {
	e := NewExtractor(nil)
	joint := e.Parties("原告：王小明，被告：陳大華，兩人共同出資。聲請人：吳三。")
	info := Info{Parties: joint}
	a, _ := info.Party("王小明")
	if a.Relationships["陳大華"] != JointParty {
		t.Errorf("expected joint relationship, got %+v", a)
	}
	if _, ok := a.Relationships["吳三"]; ok {
		t.Errorf("parties in different sentences should not be related: %+v", a)
	}

	agent := e.Parties("上訴人：林一，被上訴人：周二。林一委任周二為訴訟代理人。")
	info = Info{Parties: agent}
	p, _ := info.Party("林一")
	if p.Relationships["周二"] != AgentParty {
		t.Errorf("expected agent relationship, got %+v", p)
	}

	for _, parties := range [][]Party{joint, agent} {
		byName := Info{Parties: parties}
		for _, x := range parties {
			for other, rel := range x.Relationships {
				y, ok := byName.Party(other)
				if !ok || y.Relationships[x.Name] != rel {
					t.Errorf("relationship %s→%s not symmetric", x.Name, other)
				}
			}
		}
	}
}

func TestPartyNameStops(t *testing.T) {
	parties := NewExtractor(nil).Parties("原告主張被告李四應返還借款，上訴人之訴訟代理人到庭。")
	if len(parties) != 1 || parties[0].Name != "李四" || parties[0].Role != "被告" {
		t.Errorf("expected only 李四 as 被告, got %+v", parties)
	}
}

func TestPartyAgentNames(t *testing.T) {
	e := NewExtractor(nil)
	if parties := e.Parties("原告訴訟代理人王五到庭"); len(parties) != 1 || parties[0].Name != "王五" || parties[0].Role != "訴訟代理人" {
		t.Errorf("expected 王五 as 訴訟代理人, got %+v", parties)
	}

	info := Info{Parties: e.Parties("原告：張三，訴訟代理人王五律師到庭陳述。")}
	zhang, ok := info.Party("張三")
	if !ok || zhang.Role != "原告" {
		t.Fatalf("expected 張三 as 原告, got %+v", info.Parties)
	}
	wang, ok := info.Party("王五")
	if !ok {
		t.Fatalf("expected agent 王五, got %+v", info.Parties)
	}
	if zhang.Relationships["王五"] != AgentParty || wang.Relationships["張三"] != AgentParty {
		t.Errorf("expected symmetric agent relationship, got %+v", info.Parties)
	}
}

func TestProcessScenario(t *testing.T) {
	text := normalize.Normalize("原告：張三\n被告：李四\n民國110年1月1日交付貨物\n")
	_, info, findings := NewExtractor(nil).Process(text)

	zhang, ok := info.Party("張三")
	if !ok || zhang.Role != "原告" {
		t.Errorf("expected 張三 as 原告, got %+v", info.Parties)
	}
	li, ok := info.Party("李四")
	if !ok || li.Role != "被告" {
		t.Errorf("expected 李四 as 被告, got %+v", info.Parties)
	}
	if len(info.Parties) != 2 {
		t.Errorf("expected 2 parties, got %d", len(info.Parties))
	}

	if len(info.Timeline) != 1 {
		t.Fatalf("expected 1 timeline entry, got %+v", info.Timeline)
	}
	entry := info.Timeline[0]
	if entry.Date.String() != "110-01-01" || !entry.Date.ROC {
		t.Errorf("expected raw ROC date 110-01-01, got %v roc=%v", entry.Date, entry.Date.ROC)
	}
	if len(entry.Parties) != 2 || entry.Parties[0] != "張三" || entry.Parties[1] != "李四" {
		t.Errorf("expected related parties [張三 李四], got %v", entry.Parties)
	}
	if entry.Importance != 0.7 || entry.Event != "交付貨物" {
		t.Errorf("unexpected entry %+v", entry)
	}

	if validate.HasErrors(findings) {
		t.Errorf("parties were found, expected no error findings: %+v", findings)
	}
	if len(findings) != 2 {
		t.Errorf("expected citation and argument warnings, got %+v", findings)
	}
}

func TestProcessNoParties(t *testing.T) {
	_, _, findings := NewExtractor(nil).Process("本件事實如下。")
	if !validate.HasErrors(findings) {
		t.Errorf("missing parties should be an error finding: %+v", findings)
	}
}
