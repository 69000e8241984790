package sink

import (
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// fakeS3 keeps objects in memory. Only single-part uploads are supported,
// which covers every document smaller than the upload manager's part size.
type fakeS3 struct {
	S3API

	mu        sync.Mutex
	objects   map[string][]byte
	bucketErr error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("missing")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(string(data)))}, nil
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
	slices.Sort(keys)

	out := &s3.ListObjectsV2Output{}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func (f *fakeS3) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if f.bucketErr != nil {
		return nil, f.bucketErr
	}
	return &s3.HeadBucketOutput{}, nil
}

func TestS3Sink(t *testing.T) {
	exerciseSink(t, NewS3Sink(newFakeS3(), "reports", "wheelwatch/"))
}

func TestS3Sink_KeysUsePrefix(t *testing.T) {
	client := newFakeS3()
	s := NewS3Sink(client, "reports", "fleet-a/")

	if err := s.Put("c1/doc.json", strings.NewReader("{}"), 2); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if _, ok := client.objects["fleet-a/c1/doc.json"]; !ok {
		t.Errorf("objects = %v, want key fleet-a/c1/doc.json", client.objects)
	}

	// Objects outside the prefix are invisible.
	client.objects["other/c1/doc.json"] = []byte("{}")
	names, err := s.List("c1/")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(names) != 1 || names[0] != "c1/doc.json" {
		t.Errorf("List() = %v, want [c1/doc.json]", names)
	}
}

func TestS3Sink_ValidateSetup(t *testing.T) {
	client := newFakeS3()
	client.bucketErr = errors.New("forbidden")
	s := NewS3Sink(client, "reports", "")

	if err := s.ValidateSetup(); err == nil {
		t.Error("ValidateSetup() expected error when bucket is inaccessible")
	}
}

func TestContentType(t *testing.T) {
	if got := contentType("c1/a.json"); got != "application/json" {
		t.Errorf("contentType(.json) = %q", got)
	}
	if got := contentType("c1/a.json.age"); got != "application/octet-stream" {
		t.Errorf("contentType(.json.age) = %q", got)
	}
}
