package s3store

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/cognicore/lexcase/pkg/lexcase/internalerr"
	"github.com/cognicore/lexcase/pkg/lexcase/versions"
)

// fakeS3 is an in-memory bucket honoring If-None-Match on put.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeS3() *fakeS3 { return &fakeS3{objects: make(map[string][]byte)} }

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := aws.ToString(in.Key)
	if _, ok := f.objects[key]; ok && aws.ToString(in.IfNoneMatch) == "*" {
		return nil, &smithy.GenericAPIError{Code: "PreconditionFailed", Message: "object exists"}
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[key] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	m := versions.NewManager(New(fake, "cases", "versions/"))

	v1, err := m.Record(ctx, "doc-1", "第一版", "")
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if _, err := m.Record(ctx, "doc-1", "第二版", ""); err != nil {
		t.Fatalf("Record: %v", err)
	}

	if _, ok := fake.objects["versions/doc-1/"+v1.ID+".json"]; !ok {
		t.Errorf("expected object under versions/doc-1/, have %v", fake.objects)
	}

	vs, err := m.Versions(ctx, "doc-1")
	if err != nil {
		t.Fatalf("Versions: %v", err)
	}
	if len(vs) != 2 || vs[0].Changes != versions.ChangeInitial || vs[1].Changes != versions.ChangeContent {
		t.Fatalf("unexpected history: %+v", vs)
	}

	text, err := m.Text(ctx, "doc-1", v1.ID)
	if err != nil || text != "第一版" {
		t.Errorf("Text = %q, %v", text, err)
	}
}

func TestStorePutIsAppendOnly(t *testing.T) {
	ctx := context.Background()
	s := New(newFakeS3(), "cases", "")
	v := versions.Version{ID: "01HZX", DocID: "doc-1", Hash: versions.Hash("a")}

	if err := s.Put(ctx, v, "a"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(ctx, v, "b"); !errors.Is(err, internalerr.ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
	_, text, err := s.Get(ctx, "doc-1", "01HZX")
	if err != nil || text != "a" {
		t.Errorf("original version should be kept, got %q, %v", text, err)
	}
}

func TestStoreGetMissing(t *testing.T) {
	_, _, err := New(newFakeS3(), "cases", "").Get(context.Background(), "doc-1", "nope")
	if !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreDelete(t *testing.T) {
	ctx := context.Background()
	s := New(newFakeS3(), "cases", "v/")
	v := versions.Version{ID: "01HZY", DocID: "doc-1"}
	if err := s.Put(ctx, v, "a"); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "doc-1", "01HZY"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, _, err := s.Get(ctx, "doc-1", "01HZY"); !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}
