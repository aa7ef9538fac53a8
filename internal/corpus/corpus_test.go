package corpus

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/cognicore/lexcase/pkg/lexcase/document"
	"github.com/cognicore/lexcase/pkg/lexcase/validate"
)

func TestLoadFromJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cases.jsonl")
	content := `{"doc_id":"a","court":"最高法院","date":"2021-03-01","text":"原告：張三"}

not json
{"doc_id":"b","date":"2021-03-02T10:00:00Z","text":"被告：李四"}
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	recs, err := LoadFromJSONL(path, nil)
	if err != nil {
		t.Fatalf("LoadFromJSONL: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}

	in, ok := recs[0].Input().(document.Structured)
	if !ok {
		t.Fatalf("expected structured input, got %T", recs[0].Input())
	}
	if in.Document.ID != "a" || in.Document.Metadata.Court != "最高法院" {
		t.Errorf("unexpected document %+v", in.Document)
	}
	if !in.Document.Metadata.Date.Equal(time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("date not parsed: %v", in.Document.Metadata.Date)
	}
}

func TestLoadFromJSONLEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.jsonl")
	os.WriteFile(path, []byte("\n\n"), 0644)
	if _, err := LoadFromJSONL(path, nil); err == nil {
		t.Error("expected error for file without records")
	}
}

func TestRecordBadDateKeptRaw(t *testing.T) {
	extra := map[string]string{"judge": "王法官"}
	in := Record{DocID: "x", Date: "not-a-date", Text: "t", Extra: extra}.Input().(document.Structured)
	md := in.Document.Metadata
	if !md.Date.IsZero() {
		t.Errorf("unparsable date should stay zero, got %v", md.Date)
	}
	if md.Extra[document.RawDateKey] != "not-a-date" {
		t.Errorf("raw date not kept: %v", md.Extra)
	}
	if _, ok := extra[document.RawDateKey]; ok {
		t.Error("record extra map was modified")
	}

	var rules []string
	for _, r := range validate.New(validate.DefaultRules()).ValidateMetadata(md.Fields()) {
		rules = append(rules, r.Rule+":"+r.Field)
	}
	if !slices.Contains(rules, "invalid_date:date") {
		t.Errorf("expected invalid_date finding, got %v", rules)
	}
	if slices.Contains(rules, "required_field:date") {
		t.Errorf("raw date should not count as missing: %v", rules)
	}
}

func TestRecordEmptyDate(t *testing.T) {
	in := Record{DocID: "x", Text: "t"}.Input().(document.Structured)
	if _, ok := in.Document.Metadata.Extra[document.RawDateKey]; ok {
		t.Error("empty date should not be kept raw")
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	txt := filepath.Join(dir, "110-台上-1234.txt")
	os.WriteFile(txt, []byte("原告：張三"), 0644)
	js := filepath.Join(dir, "case.json")
	os.WriteFile(js, []byte(`{"court":"臺灣高等法院","text":"被告：李四"}`), 0644)

	in, err := LoadFile(txt)
	if err != nil {
		t.Fatal(err)
	}
	doc := in.(document.Structured).Document
	if doc.ID != "110-台上-1234" || doc.Content != "原告：張三" || doc.Metadata.Source != "inbox" {
		t.Errorf("unexpected text document %+v", doc)
	}

	in, err = LoadFile(js)
	if err != nil {
		t.Fatal(err)
	}
	doc = in.(document.Structured).Document
	if doc.ID != "case" || doc.Metadata.Court != "臺灣高等法院" {
		t.Errorf("unexpected json document %+v", doc)
	}
}
