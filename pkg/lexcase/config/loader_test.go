package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cognicore/lexcase/pkg/lexcase/document"
	"github.com/cognicore/lexcase/pkg/lexcase/index/memindex"
	"github.com/cognicore/lexcase/pkg/lexcase/store/memstore"
	"github.com/cognicore/lexcase/pkg/lexcase/store/sqlite"
)

func TestLoaderAllEmpty(t *testing.T) {
	comp, err := (&Loader{}).Load(context.Background())
	if err != nil {
		t.Fatalf("empty loader should succeed: %v", err)
	}
	defer comp.Close()

	if _, ok := comp.Store.(*memstore.Store); !ok {
		t.Errorf("expected memory store, got %T", comp.Store)
	}
	if _, ok := comp.Index.(*memindex.Index); !ok {
		t.Errorf("expected memory index, got %T", comp.Index)
	}
	if comp.Versions == nil || comp.Masker == nil || comp.Extractor == nil || comp.Validator == nil || comp.Monitor == nil {
		t.Errorf("missing components: %+v", comp)
	}
}

func TestLoaderNonExistentConfig(t *testing.T) {
	if _, err := (&Loader{ConfigPath: "/nonexistent/lexcase.yaml"}).Load(context.Background()); err == nil {
		t.Error("should error on nonexistent config")
	}
}

func TestLoaderNonExistentDict(t *testing.T) {
	if _, err := (&Loader{TermsPath: "/nonexistent/terms.dict"}).Load(context.Background()); err == nil {
		t.Error("should error on nonexistent dictionary")
	}
}

func TestLoaderNonExistentGazetteer(t *testing.T) {
	if _, err := (&Loader{GazetteerPath: "/nonexistent/gazetteer.yaml"}).Load(context.Background()); err == nil {
		t.Error("should error on nonexistent gazetteer")
	}
}

func TestLoaderValidFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	cfgPath := filepath.Join(dir, "lexcase.yaml")
	dictPath := filepath.Join(dir, "terms.dict")
	gazPath := filepath.Join(dir, "gazetteer.yaml")
	dbPath := filepath.Join(dir, "lexcase.db")

	cfgContent := "store:\n  driver: sqlite\n  dsn: " + dbPath + "\n" +
		"versions:\n  driver: file\n  dir: " + filepath.Join(dir, "versions") + "\n" +
		"terms_path: " + dictPath + "\n" +
		"gazetteer_path: " + gazPath + "\n"
	os.WriteFile(cfgPath, []byte(cfgContent), 0644)
	os.WriteFile(dictPath, []byte("損害賠償|賠償損害|civil\n"), 0644)
	os.WriteFile(gazPath, []byte("persons: [張三]\n"), 0644)

	comp, err := (&Loader{ConfigPath: cfgPath}).Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer comp.Close()

	if _, ok := comp.Store.(*sqlite.Store); !ok {
		t.Fatalf("expected sqlite store, got %T", comp.Store)
	}
	if got, _ := comp.Extractor.Standardize("被告應賠償損害並給付"); got != "被告應損害賠償並支付" {
		t.Errorf("file and default terms should both apply, got %q", got)
	}

	p := comp.Pipeline()
	out, err := p.Process(ctx, document.RawText("原告：張三\n被告：李四\n民國110年1月1日交付貨物\n"), &document.Metadata{DocID: "case-1"})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if strings.Contains(out.Text, "張三") || !strings.Contains(out.Text, "張**") {
		t.Errorf("gazetteer name should be masked: %s", out.Text)
	}
	if _, ok := out.Info.Party("張三"); !ok {
		t.Error("extraction should still see the unmasked name")
	}

	vs, err := comp.Versions.Versions(ctx, "case-1")
	if err != nil || len(vs) != 1 {
		t.Fatalf("expected one file version, got %v %v", vs, err)
	}
	if _, err := os.Stat(filepath.Join(dir, "versions", "case-1_"+vs[0].ID+".json")); err != nil {
		t.Errorf("version file missing: %v", err)
	}
	if _, err := comp.Store.GetDocument(ctx, "case-1"); err != nil {
		t.Errorf("document not stored in sqlite: %v", err)
	}
}

func TestLoaderSharesSQLiteForVersions(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "lexcase.yaml")
	os.WriteFile(cfgPath, []byte("store:\n  driver: sqlite\n  dsn: "+filepath.Join(dir, "db.sqlite")+"\nversions:\n  driver: sqlite\n"), 0644)

	comp, err := (&Loader{ConfigPath: cfgPath}).Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(comp.closers) != 1 {
		t.Errorf("version store should reuse the sqlite store, got %d closers", len(comp.closers))
	}
	if err := comp.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
}
