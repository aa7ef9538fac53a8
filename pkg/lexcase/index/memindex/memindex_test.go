package memindex

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/cognicore/lexcase/pkg/lexcase/internalerr"
)

func TestAddAndSearch(t *testing.T) {
	ctx := context.Background()
	x := New(nil)
	ids, err := x.AddTexts(ctx,
		[]string{"原告請求損害賠償", "被告抗辯時效消滅", "天氣晴朗"},
		[]map[string]string{{"doc_id": "a"}, {"doc_id": "a"}, {"doc_id": "b"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 3 || ids[0] == ids[1] {
		t.Fatalf("expected 3 distinct ids, got %v", ids)
	}

	res, err := x.SimilaritySearch(ctx, "損害賠償", 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 2 {
		t.Fatalf("expected 2 results, got %d", len(res))
	}
	if res[0].Text != "原告請求損害賠償" {
		t.Errorf("expected best match first, got %q", res[0].Text)
	}
	if res[0].Score < res[1].Score {
		t.Error("results should be sorted by score")
	}
}

func TestSearchFilter(t *testing.T) {
	ctx := context.Background()
	x := New(nil)
	x.AddTexts(ctx, []string{"損害賠償", "損害賠償事件"}, []map[string]string{{"doc_id": "a"}, {"doc_id": "b"}})

	res, _ := x.SimilaritySearch(ctx, "損害賠償", 10, map[string]string{"doc_id": "b"})
	if len(res) != 1 || res[0].Metadata["doc_id"] != "b" {
		t.Fatalf("filter not applied: %+v", res)
	}
}

func TestAddTextsMetadataMismatch(t *testing.T) {
	_, err := New(nil).AddTexts(context.Background(), []string{"a", "b"}, []map[string]string{{}})
	if !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestMetadataIsCopied(t *testing.T) {
	ctx := context.Background()
	x := New(nil)
	meta := map[string]string{"doc_id": "a"}
	x.AddTexts(ctx, []string{"判決"}, []map[string]string{meta})
	meta["doc_id"] = "changed"

	res, _ := x.SimilaritySearch(ctx, "判決", 1, nil)
	if res[0].Metadata["doc_id"] != "a" {
		t.Error("index should not alias caller metadata")
	}
}

func TestConcurrentAdds(t *testing.T) {
	ctx := context.Background()
	x := New(nil)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			x.AddTexts(ctx, []string{"裁定", "決定"}, nil)
		}()
	}
	wg.Wait()
	if x.Len() != 40 {
		t.Errorf("expected 40 entries, got %d", x.Len())
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	x := New(nil)
	ids, _ := x.AddTexts(ctx, []string{"損害賠償", "返還借款", "清償債務"}, nil)

	if err := x.Delete(ctx, []string{ids[0], ids[2], "missing"}); err != nil {
		t.Fatal(err)
	}
	if x.Len() != 1 {
		t.Fatalf("expected 1 entry left, got %d", x.Len())
	}
	res, _ := x.SimilaritySearch(ctx, "損害賠償", 10, nil)
	if len(res) != 1 || res[0].ID != ids[1] {
		t.Errorf("unexpected results after delete: %+v", res)
	}
	if err := x.Delete(ctx, nil); err != nil {
		t.Errorf("empty delete: %v", err)
	}
}
