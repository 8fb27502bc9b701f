package parser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	data     []byte
	ct       string
	filename string
}

func (f *fakeReader) Bytes() ([]byte, error) { return f.data, nil }
func (f *fakeReader) ContentType() string    { return f.ct }
func (f *fakeReader) Filename() string       { return f.filename }

func TestRouter_DispatchesByContentType(t *testing.T) {
	r := NewRouter(Options{})
	parsed, err := r.Parse(context.Background(), &fakeReader{
		data: []byte("hello world"), ct: "text/plain", filename: "notes.txt",
	})
	require.NoError(t, err)
	assert.Equal(t, "hello world", parsed.Text)
	assert.Equal(t, "text", parsed.SourceModality)
}

func TestRouter_DispatchesByExtensionWhenContentTypeUnknown(t *testing.T) {
	r := NewRouter(Options{})
	parsed, err := r.Parse(context.Background(), &fakeReader{
		data: []byte("a,b,c\n1,2,3"), ct: "application/octet-stream", filename: "data.csv",
	})
	require.NoError(t, err)
	assert.Contains(t, parsed.Text, "a,b,c")
}

func TestRouter_RejectsUnroutableFormat(t *testing.T) {
	r := NewRouter(Options{})
	_, err := r.Parse(context.Background(), &fakeReader{
		data: []byte{0xff, 0xfe}, ct: "application/x-unknown", filename: "mystery.bin",
	})
	require.Error(t, err)
	assert.False(t, IsRetryable(err))
}

func TestRouter_ImageDisabledByDefault(t *testing.T) {
	r := NewRouter(Options{OCREnabled: false})
	_, err := r.Parse(context.Background(), &fakeReader{
		data: []byte("fake png bytes"), ct: "image/png", filename: "scan.png",
	})
	require.Error(t, err, "image parser should not be registered when OCR is disabled")
}

func TestRouter_ImageEnabledRoutesToImageParser(t *testing.T) {
	r := NewRouter(Options{OCREnabled: true})
	_, err := r.Parse(context.Background(), &fakeReader{
		data: []byte("fake png bytes"), ct: "image/png", filename: "scan.png",
	})
	// reaches ImageParser.Parse (unlike the disabled case, which never finds
	// a router entry); it still fails because no OCR endpoint is configured.
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OCR backend not configured")
}

func TestTextParser_RejectsBinaryLookingData(t *testing.T) {
	p := &TextParser{}
	_, err := p.Parse(context.Background(), &fakeReader{
		data: []byte{0x00, 0x01, 0x02, 0x03}, filename: "blob.txt",
	})
	require.Error(t, err)
	assert.False(t, IsRetryable(err))
}

func TestHasExt(t *testing.T) {
	assert.True(t, hasExt("NOTES.TXT", ".txt"))
	assert.True(t, hasExt("report.CSV", ".csv", ".log"))
	assert.False(t, hasExt("report.pdf", ".txt", ".csv"))
}

func TestLooksBinary(t *testing.T) {
	assert.True(t, looksBinary([]byte{0x00, 0x01, 0x02}))
	assert.False(t, looksBinary([]byte("just some plain ascii text")))
}

func TestLocator_HasAny(t *testing.T) {
	assert.False(t, Locator{}.HasAny())
	page := 1
	assert.True(t, Locator{Page: &page}.HasAny())
}
