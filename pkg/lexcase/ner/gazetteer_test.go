package ner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestGazetteerExtractEntities(t *testing.T) {
	g := NewGazetteer()
	g.Add(Person, "張三", "李四")
	g.Add(Location, "臺北市", "臺北市大安區")

	text := "張三住在臺北市大安區，李四住在臺北市。"
	ents, err := g.ExtractEntities(context.Background(), text)
	if err != nil {
		t.Fatalf("ExtractEntities: %v", err)
	}
	if len(ents) != 4 {
		t.Fatalf("expected 4 entities, got %d: %+v", len(ents), ents)
	}
	if ents[1].Text != "臺北市大安區" || ents[1].Type != Location {
		t.Errorf("longest keyword should win, got %+v", ents[1])
	}
	for i, e := range ents {
		if text[e.Start:e.End] != e.Text {
			t.Errorf("entity %d offsets do not slice to its text: %+v", i, e)
		}
		if i > 0 && e.Start < ents[i-1].End {
			t.Errorf("entities overlap: %+v and %+v", ents[i-1], e)
		}
	}
}

func TestGazetteerEmpty(t *testing.T) {
	ents, err := NewGazetteer().ExtractEntities(context.Background(), "原告張三")
	if err != nil {
		t.Fatalf("ExtractEntities: %v", err)
	}
	if len(ents) != 0 {
		t.Errorf("empty gazetteer should find nothing, got %v", ents)
	}
}

func TestGazetteerCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g := NewGazetteer()
	g.Add(Person, "張三")
	if _, err := g.ExtractEntities(ctx, "張三"); err == nil {
		t.Error("expected error on canceled context")
	}
}

func TestLoadGazetteer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gazetteer.yaml")
	content := "persons:\n  - 張三\n  - 李四\nlocations:\n  - 高雄市\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	g, err := LoadGazetteer(path)
	if err != nil {
		t.Fatalf("LoadGazetteer: %v", err)
	}
	if g.Len() != 3 {
		t.Errorf("expected 3 keywords, got %d", g.Len())
	}
	if _, err := LoadGazetteer(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
