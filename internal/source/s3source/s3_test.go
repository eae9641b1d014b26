package s3source

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/discochess/capdump/internal/source"
)

func TestObjectInput(t *testing.T) {
	loc, err := source.Parse("s3://captures/2024/edge.pcapng.xz")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	in := objectInput(loc)
	if *in.Bucket != "captures" {
		t.Errorf("Bucket = %q, want %q", *in.Bucket, "captures")
	}
	if *in.Key != "2024/edge.pcapng.xz" {
		t.Errorf("Key = %q, want %q", *in.Key, "2024/edge.pcapng.xz")
	}
}

// isolateAWS keeps the SDK away from the developer's credentials and IMDS.
func isolateAWS(t *testing.T) {
	t.Helper()
	none := filepath.Join(t.TempDir(), "none")
	t.Setenv("AWS_CONFIG_FILE", none)
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", none)
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
}

func TestOpener_Open(t *testing.T) {
	isolateAWS(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/captures/edge.pcapng":
			w.Write([]byte("object body"))
		default:
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`))
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	o, err := New(ctx, WithRegion("us-east-1"), WithEndpoint(srv.URL))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer o.Close()

	loc, _ := source.Parse("s3://captures/edge.pcapng")
	rc, err := o.Open(ctx, loc)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	got, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(got) != "object body" {
		t.Errorf("read %q, want %q", got, "object body")
	}

	loc, _ = source.Parse("s3://captures/missing.pcapng")
	if _, err := o.Open(ctx, loc); !errors.Is(err, source.ErrNotFound) {
		t.Errorf("Open(missing) error = %v, want ErrNotFound", err)
	}
}
