package parts

import (
	"context"
	"errors"
	"testing"

	"github.com/matheus3301/smsync/internal/provider"
	"golang.org/x/text/encoding/charmap"
)

type fakeReader struct {
	parts map[int64][]provider.Part
	err   error
}

func (f *fakeReader) Parts(_ context.Context, id int64) ([]provider.Part, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.parts[id], nil
}

func TestExtract(t *testing.T) {
	latin1, err := charmap.ISO8859_1.NewEncoder().String("café")
	if err != nil {
		t.Fatal(err)
	}
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	tests := []struct {
		name  string
		parts []provider.Part
		want  Content
	}{
		{
			name:  "text and image",
			parts: []provider.Part{{ID: 1, ContentType: "application/smil"}, {ID: 2, ContentType: "text/plain", Text: "hello"}, {ID: 3, ContentType: "image/jpeg"}},
			want:  Content{Text: "hello", ImageRef: "part:3"},
		},
		{
			name:  "blank content type is text",
			parts: []provider.Part{{ID: 1, Text: "plain"}},
			want:  Content{Text: "plain"},
		},
		{
			name:  "last text wins",
			parts: []provider.Part{{ID: 1, ContentType: "text/plain", Text: "first"}, {ID: 2, ContentType: "text/plain", Text: "second"}, {ID: 3, ContentType: "text/plain", Text: "  "}},
			want:  Content{Text: "second"},
		},
		{
			name:  "video counts as image",
			parts: []provider.Part{{ID: 9, ContentType: "video/mp4"}},
			want:  Content{ImageRef: "part:9"},
		},
		{
			name:  "declared legacy charset",
			parts: []provider.Part{{ID: 1, ContentType: "text/plain; charset=iso-8859-1", Charset: "4", Text: latin1}},
			want:  Content{Text: "café"},
		},
		{
			name:  "stored utf-8 text ignores declared charset",
			parts: []provider.Part{{ID: 1, ContentType: "text/plain", Charset: "4", Text: "café"}},
			want:  Content{Text: "café"},
		},
		{
			name:  "declared charset on raw payload",
			parts: []provider.Part{{ID: 1, ContentType: "text/plain", Charset: "4", Data: []byte(latin1)}},
			want:  Content{Text: "café"},
		},
		{
			name:  "sniffed payload",
			parts: []provider.Part{{ID: 4, ContentType: "application/octet-stream", Data: png}},
			want:  Content{ImageRef: "part:4"},
		},
		{
			name:  "no usable parts",
			parts: []provider.Part{{ID: 1, ContentType: "application/smil"}},
			want:  Content{Text: NoContent},
		},
		{
			name: "no parts at all",
			want: Content{Text: NoContent},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewExtractor(&fakeReader{parts: map[int64][]provider.Part{1: tt.parts}}, nil)
			got, err := e.Extract(context.Background(), 1)
			if err != nil {
				t.Fatalf("Extract error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Extract = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestExtractReaderFailureFallsBack(t *testing.T) {
	e := NewExtractor(&fakeReader{err: errors.New("boom")}, nil)
	got, err := e.Extract(context.Background(), 1)
	if !errors.Is(err, ErrExtractionFailed) {
		t.Fatalf("err = %v, want ErrExtractionFailed", err)
	}
	if got.Text != NoContent {
		t.Errorf("Text = %q, want fallback", got.Text)
	}
	if r := e.Resolve(context.Background(), 1); r.Text != NoContent {
		t.Errorf("Resolve = %+v", r)
	}
}

func TestSnippet(t *testing.T) {
	if s := (Content{Text: "hi", ImageRef: "part:1"}).Snippet(); s != "hi" {
		t.Errorf("Snippet = %q", s)
	}
	if s := (Content{ImageRef: "part:1"}).Snippet(); s != ImageLabel {
		t.Errorf("Snippet = %q", s)
	}
	if s := (Content{}).Snippet(); s != NoContent {
		t.Errorf("Snippet = %q", s)
	}
}
