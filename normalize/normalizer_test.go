package normalize

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/poiesic/mailqa/core"
	"github.com/poiesic/mailqa/mail"
	"github.com/poiesic/mailqa/mail/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newNormalizer(t *testing.T, opts ...Option) *Normalizer {
	t.Helper()
	n, err := New(opts...)
	require.NoError(t, err)
	return n
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func writeDOCX(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	require.NoError(t, err)

	zw := zip.NewWriter(f)
	w, err := zw.Create("[Content_Types].xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"><Default Extension="xml" ContentType="application/xml"/><Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/></Types>`))
	require.NoError(t, err)
	w, err = zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` + body + `</w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func TestNew_RejectsBadChunking(t *testing.T) {
	tests := []struct {
		name          string
		size, overlap int
	}{
		{name: "zero size", size: 0, overlap: 0},
		{name: "negative overlap", size: 100, overlap: -1},
		{name: "overlap equals size", size: 100, overlap: 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(WithChunking(tt.size, tt.overlap))
			assert.ErrorIs(t, err, ErrInvalidChunking)
		})
	}
}

func TestFromMessage_HTMLBody(t *testing.T) {
	n := newNormalizer(t)
	msg := mock.HTMLMessage("m1", "alice@example.com", "Q3 budget",
		`<html><head><style>p{color:red}</style></head><body><p>The budget is   approved.</p><script>track()</script><div>Thanks</div></body></html>`)

	doc, err := n.FromMessage(msg)
	require.NoError(t, err)

	assert.Equal(t, core.NewDocumentID(core.SourceKindMessage, "m1"), doc.ID)
	assert.Equal(t, "The budget is approved.\nThanks", doc.Content)
	assert.Equal(t, "alice@example.com", doc.Meta(core.MetaSender))
	assert.Equal(t, "Q3 budget", doc.Meta(core.MetaSubject))
	assert.Equal(t, "m1", doc.Meta(core.MetaMessageID))
	assert.Equal(t, core.SourceBody, doc.Meta(core.MetaSource))
}

func TestFromMessage_PrefersHTMLOverPlain(t *testing.T) {
	n := newNormalizer(t)
	msg := &mail.RawMessage{
		ID: "m2",
		Payload: &mail.MessagePart{
			MimeType: "multipart/alternative",
			Parts: []*mail.MessagePart{
				{MimeType: "text/plain", Body: mail.PartBody{Data: mail.EncodeData([]byte("plain version"))}},
				{MimeType: "text/html", Body: mail.PartBody{Data: mail.EncodeData([]byte("<p>html version</p>"))}},
			},
		},
	}

	doc, err := n.FromMessage(msg)
	require.NoError(t, err)
	assert.Equal(t, "html version", doc.Content)
}

func TestFromMessage_PlainTextFallback(t *testing.T) {
	n := newNormalizer(t)
	msg := &mail.RawMessage{
		ID:      "m3",
		Headers: []mail.Header{{Name: "Subject", Value: "Lunch"}},
		Payload: &mail.MessagePart{
			MimeType: "text/plain",
			Body:     mail.PartBody{Data: mail.EncodeData([]byte("see you\n\n  at noon"))},
		},
	}

	doc, err := n.FromMessage(msg)
	require.NoError(t, err)
	assert.Equal(t, "see you\nat noon", doc.Content)
	assert.Equal(t, "Lunch", doc.Meta(core.MetaSubject))
	assert.Equal(t, "", doc.Meta(core.MetaSender))
}

func TestFromMessage_Charset(t *testing.T) {
	n := newNormalizer(t)
	msg := &mail.RawMessage{
		ID: "m4",
		Payload: &mail.MessagePart{
			MimeType: "text/plain",
			Headers:  []mail.Header{{Name: "Content-Type", Value: "text/plain; charset=iso-8859-1"}},
			Body:     mail.PartBody{Data: mail.EncodeData([]byte("caf\xe9"))},
		},
	}

	doc, err := n.FromMessage(msg)
	require.NoError(t, err)
	assert.Equal(t, "café", doc.Content)
}

func TestFromMessage_NoBody(t *testing.T) {
	n := newNormalizer(t)
	msg := &mail.RawMessage{
		ID: "m5",
		Payload: &mail.MessagePart{
			MimeType: "multipart/mixed",
			Parts:    []*mail.MessagePart{mock.AttachmentPart("a.pdf", "att1")},
		},
	}

	_, err := n.FromMessage(msg)
	assert.ErrorIs(t, err, ErrNoExtractableBody)
	assert.ErrorIs(t, err, core.ErrPartialExtraction)

	_, err = n.FromMessage(&mail.RawMessage{ID: "m6"})
	assert.ErrorIs(t, err, ErrNoExtractableBody)
}

func TestFromMessage_BadEncoding(t *testing.T) {
	n := newNormalizer(t)
	msg := &mail.RawMessage{
		ID:      "m7",
		Payload: &mail.MessagePart{MimeType: "text/plain", Body: mail.PartBody{Data: "!!!not base64!!!"}},
	}

	_, err := n.FromMessage(msg)
	assert.ErrorIs(t, err, core.ErrPartialExtraction)
}

func TestFromFile_PlainText(t *testing.T) {
	n := newNormalizer(t)
	path := writeFile(t, "notes.txt", "contract renewal is due in March")

	docs, err := n.FromFile(context.Background(), path, map[string]string{core.MetaMessageID: "m1"})
	require.NoError(t, err)
	require.Len(t, docs, 1)

	doc := docs[0]
	assert.Equal(t, core.NewDocumentID(core.SourceKindAttachment, "m1/notes.txt").PassageID(0), doc.ID)
	assert.Equal(t, "contract renewal is due in March", doc.Content)
	assert.Equal(t, "notes.txt", doc.Meta(core.MetaSourceFilename))
	assert.Equal(t, core.SourceAttachment, doc.Meta(core.MetaSource))
	assert.Equal(t, "m1", doc.Meta(core.MetaMessageID))
}

func TestFromFile_Chunks(t *testing.T) {
	n := newNormalizer(t, WithChunking(50, 10))
	text := strings.Repeat("budget review notes for the quarter. ", 20)
	path := writeFile(t, "long.txt", text)

	docs, err := n.FromFile(context.Background(), path, nil)
	require.NoError(t, err)
	require.Greater(t, len(docs), 1)

	base := core.NewDocumentID(core.SourceKindAttachment, "long.txt")
	seen := make(map[core.DocumentID]bool)
	for i, doc := range docs {
		assert.Equal(t, base.PassageID(i), doc.ID)
		assert.LessOrEqual(t, len([]rune(doc.Content)), 50)
		assert.False(t, seen[doc.ID])
		seen[doc.ID] = true
	}
}

func TestFromFile_IDsScopedToMessage(t *testing.T) {
	n := newNormalizer(t)
	path := writeFile(t, "invoice.txt", "invoice total")
	ctx := context.Background()

	first, err := n.FromFile(ctx, path, map[string]string{core.MetaMessageID: "m1"})
	require.NoError(t, err)
	second, err := n.FromFile(ctx, path, map[string]string{core.MetaMessageID: "m2"})
	require.NoError(t, err)
	again, err := n.FromFile(ctx, path, map[string]string{core.MetaMessageID: "m1"})
	require.NoError(t, err)

	assert.NotEqual(t, first[0].ID, second[0].ID)
	assert.Equal(t, first[0].ID, again[0].ID)
}

func TestFromFile_MetadataNotShared(t *testing.T) {
	n := newNormalizer(t, WithChunking(20, 0))
	path := writeFile(t, "a.txt", strings.Repeat("alpha beta gamma ", 10))
	meta := map[string]string{core.MetaSubject: "s"}

	docs, err := n.FromFile(context.Background(), path, meta)
	require.NoError(t, err)
	require.Greater(t, len(docs), 1)

	docs[0].Metadata[core.MetaSubject] = "changed"
	assert.Equal(t, "s", docs[1].Meta(core.MetaSubject))
	assert.Equal(t, "s", meta[core.MetaSubject])
	assert.NotContains(t, meta, core.MetaSourceFilename)
}

func TestFromFile_EmptyFile(t *testing.T) {
	n := newNormalizer(t)
	path := writeFile(t, "empty.txt", "")

	docs, err := n.FromFile(context.Background(), path, nil)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "", docs[0].Content)
}

func TestFromFile_HTML(t *testing.T) {
	n := newNormalizer(t)
	path := writeFile(t, "page.html", "<html><body><h1>Agenda</h1><p>Kickoff at 9</p></body></html>")

	docs, err := n.FromFile(context.Background(), path, nil)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Agenda\nKickoff at 9", docs[0].Content)
}

func TestFromFile_DOCX(t *testing.T) {
	n := newNormalizer(t)
	path := writeDOCX(t, "memo.docx",
		`<w:p><w:r><w:t>Shipping</w:t></w:r><w:r><w:tab/><w:t>delayed</w:t></w:r></w:p><w:p><w:r><w:t>Second paragraph</w:t></w:r></w:p>`)

	docs, err := n.FromFile(context.Background(), path, nil)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Contains(t, docs[0].Content, "Shipping")
	assert.Contains(t, docs[0].Content, "delayed")
	assert.Contains(t, docs[0].Content, "Second paragraph")
	assert.NotContains(t, docs[0].Content, "<w:")
}

func TestFromFile_DOCXTableText(t *testing.T) {
	n := newNormalizer(t)
	path := writeDOCX(t, "quote.docx",
		`<w:p><w:r><w:t>Quote</w:t></w:r></w:p><w:tbl><w:tr><w:tc><w:p><w:r><w:t>Widgets</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>1200</w:t></w:r></w:p></w:tc></w:tr></w:tbl>`)

	docs, err := n.FromFile(context.Background(), path, nil)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Contains(t, docs[0].Content, "Widgets")
	assert.Contains(t, docs[0].Content, "1200")
}

func TestFromFile_DOCXWithoutText(t *testing.T) {
	n := newNormalizer(t)
	path := writeDOCX(t, "blank.docx", `<w:p></w:p>`)

	_, err := n.FromFile(context.Background(), path, nil)
	assert.ErrorIs(t, err, core.ErrPartialExtraction)
	assert.ErrorIs(t, err, errNoDocumentText)
}

func TestFromFile_DOCXWithoutDocumentPart(t *testing.T) {
	n := newNormalizer(t)
	path := filepath.Join(t.TempDir(), "broken.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	_, err = zw.Create("word/styles.xml")
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	_, err = n.FromFile(context.Background(), path, nil)
	assert.ErrorIs(t, err, core.ErrPartialExtraction)
}

func TestFromFile_CorruptPDF(t *testing.T) {
	n := newNormalizer(t)
	path := writeFile(t, "bad.pdf", "this is not a pdf")

	_, err := n.FromFile(context.Background(), path, nil)
	assert.ErrorIs(t, err, core.ErrPartialExtraction)
}

func TestFromFile_Unsupported(t *testing.T) {
	n := newNormalizer(t)
	for _, name := range []string{"legacy.doc", "image.png", "noext"} {
		path := writeFile(t, name, "data")
		_, err := n.FromFile(context.Background(), path, nil)
		assert.ErrorIs(t, err, ErrUnsupportedFormat, name)
		assert.ErrorIs(t, err, core.ErrPartialExtraction, name)
	}
}

func TestWithExtractor(t *testing.T) {
	custom := func(_ context.Context, path string) (string, error) {
		return "extracted from " + filepath.Base(path), nil
	}
	n := newNormalizer(t, WithExtractor("doc", custom))
	assert.True(t, n.Supports("Legacy.DOC"))

	path := writeFile(t, "legacy.doc", "\xd0\xcf\x11\xe0")
	docs, err := n.FromFile(context.Background(), path, nil)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "extracted from legacy.doc", docs[0].Content)
}

func TestSupports(t *testing.T) {
	n := newNormalizer(t)
	assert.True(t, n.Supports("a.PDF"))
	assert.True(t, n.Supports("dir/b.docx"))
	assert.False(t, n.Supports("c.doc"))
	assert.False(t, n.Supports("README"))
}
