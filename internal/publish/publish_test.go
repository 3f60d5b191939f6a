package publish

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	spindle "github.com/vango-dev/spindle"
	"github.com/vango-dev/spindle/internal/config"
	"github.com/vango-dev/spindle/internal/errors"
	"github.com/vango-dev/spindle/pkg/dom"
	"github.com/vango-dev/spindle/pkg/ssr"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPage(app *spindle.App) dom.Node {
	doc := app.Document()
	if app.Location() == "/old" {
		app.Driver().PushLocation("/new?a=1&b=2")
	}
	return dom.NewElement(doc, "p").Text("at " + app.Location())
}

type fakeS3 struct {
	puts map[string]string
	in   []*s3.PutObjectInput
	err  error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, _ := io.ReadAll(in.Body)
	if f.puts == nil {
		f.puts = map[string]string{}
	}
	f.puts[aws.ToString(in.Key)] = string(body)
	f.in = append(f.in, in)
	return &s3.PutObjectOutput{}, nil
}

func TestPageKey(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/", "index.html"},
		{"", "index.html"},
		{"/about", "about/index.html"},
		{"/about/", "about/index.html"},
		{"/items/42?tab=2", "items/42/index.html"},
		{"/../etc", "etc/index.html"},
	}
	for _, tt := range tests {
		if got := PageKey(tt.path); got != tt.want {
			t.Errorf("PageKey(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestDirPut(t *testing.T) {
	root := t.TempDir()
	d := NewDir(root)

	if err := d.Put(context.Background(), "a/b/index.html", contentTypeHTML, []byte("hi")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	got, err := os.ReadFile(filepath.Join(root, "a", "b", "index.html"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hi" {
		t.Errorf("file = %q, want hi", got)
	}

	entries, _ := os.ReadDir(filepath.Join(root, "a", "b"))
	if len(entries) != 1 {
		t.Errorf("temporary files left behind: %v", entries)
	}
}

func TestS3Put(t *testing.T) {
	client := &fakeS3{}
	target := NewS3(client, "site", "pages")

	if err := target.Put(context.Background(), "about/index.html", contentTypeHTML, []byte("<p>x</p>")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	in := client.in[0]
	if aws.ToString(in.Bucket) != "site" || aws.ToString(in.Key) != "pages/about/index.html" {
		t.Errorf("bucket/key = %s/%s", aws.ToString(in.Bucket), aws.ToString(in.Key))
	}
	if aws.ToString(in.ContentType) != contentTypeHTML || aws.ToInt64(in.ContentLength) != 8 {
		t.Errorf("content type/length = %s/%d", aws.ToString(in.ContentType), aws.ToInt64(in.ContentLength))
	}
	if target.String() != "s3://site/pages" {
		t.Errorf("String() = %q", target.String())
	}
}

func TestPublish(t *testing.T) {
	client := &fakeS3{}
	p := New(NewS3(client, "site", ""), ssr.NewRenderer(ssr.WithLogger(quietLogger())), testPage, quietLogger())

	results, err := p.Publish(context.Background(), []string{"/", "/about", "/old"})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}

	if got := client.puts["index.html"]; got != "<p>at /</p>" {
		t.Errorf("index.html = %q", got)
	}
	if got := client.puts["about/index.html"]; got != "<p>at /about</p>" {
		t.Errorf("about/index.html = %q", got)
	}

	old := results[2]
	if old.RedirectTo != "/new?a=1&b=2" {
		t.Errorf("RedirectTo = %q", old.RedirectTo)
	}
	stub := client.puts["old/index.html"]
	if !strings.Contains(stub, `url=/new?a=1&amp;b=2"`) {
		t.Errorf("redirect stub = %q", stub)
	}
	for _, r := range results {
		if !r.Complete || r.Bytes == 0 {
			t.Errorf("result %+v", r)
		}
	}
}

func TestPublishTargetFailure(t *testing.T) {
	cause := stderrors.New("access denied")
	p := New(NewS3(&fakeS3{err: cause}, "site", ""), ssr.NewRenderer(ssr.WithLogger(quietLogger())), testPage, quietLogger())

	results, err := p.Publish(context.Background(), []string{"/a", "/b"})
	if errors.Code(err) != "E500" {
		t.Fatalf("error = %v, want E500", err)
	}
	if !stderrors.Is(err, cause) {
		t.Error("cause not wrapped")
	}
	if len(results) != 0 {
		t.Errorf("results = %v, want none", results)
	}
}

func TestPublishRenderFailure(t *testing.T) {
	var buf bytes.Buffer
	p := New(NewDir(t.TempDir()), ssr.NewRenderer(ssr.WithLogger(quietLogger())), func(*spindle.App) dom.Node {
		panic("broken")
	}, slog.New(slog.NewTextHandler(&buf, nil)))

	_, err := p.Publish(context.Background(), []string{"/"})
	if errors.Code(err) != "E201" {
		t.Fatalf("error = %v, want E201", err)
	}
}

func TestFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.PublishConfig
		out     string
		want    string
		wantErr string
	}{
		{"out wins", config.PublishConfig{Dir: "dist", Bucket: "b"}, "build", "build", ""},
		{"dir", config.PublishConfig{Dir: "dist", Bucket: "b"}, "", "dist", ""},
		{"bucket", config.PublishConfig{Bucket: "b", Prefix: "p", Region: "eu-west-1"}, "", "s3://b/p", ""},
		{"nothing", config.PublishConfig{}, "", "", "E501"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, err := FromConfig(tt.cfg, tt.out)
			if tt.wantErr != "" {
				if errors.Code(err) != tt.wantErr {
					t.Fatalf("error = %v, want %s", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if target.String() != tt.want {
				t.Errorf("target = %q, want %q", target.String(), tt.want)
			}
		})
	}
}
