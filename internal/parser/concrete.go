package parser

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
)

// --- plain text -------------------------------------------------------

// TextParser handles text/plain content and .txt/.md/.csv/.log uploads,
// with a best-effort fallback decoding for bytes that aren't valid UTF-8.
type TextParser struct{}

func (p *TextParser) Accepts(contentType, filename string) bool {
	if strings.HasPrefix(contentType, "text/plain") {
		return true
	}
	return hasExt(filename, ".txt", ".md", ".csv", ".log")
}

func (p *TextParser) Parse(ctx context.Context, r Reader) (*Parsed, error) {
	b, err := r.Bytes()
	if err != nil {
		return nil, retryable(fmt.Errorf("parser: read %s: %w", r.Filename(), err))
	}
	if looksBinary(b) {
		return nil, permanent(fmt.Errorf("parser: %s looks binary, not text", r.Filename()))
	}
	text := decodeBestEffort(b)
	return &Parsed{Text: text, SourceModality: "text"}, nil
}

// decodeBestEffort treats b as UTF-8, replacing invalid sequences rather
// than failing, matching the specification's "UTF-8 with fallback decoding".
func decodeBestEffort(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	var sb strings.Builder
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError && size == 1 {
			sb.WriteRune(utf8.RuneError)
			b = b[1:]
			continue
		}
		sb.WriteRune(r)
		b = b[size:]
	}
	return sb.String()
}

// --- PDF ----------------------------------------------------------------

// PDFParser extracts per-page text with a page locator.
type PDFParser struct{}

func (p *PDFParser) Accepts(contentType, filename string) bool {
	return contentType == "application/pdf" || hasExt(filename, ".pdf")
}

func (p *PDFParser) Parse(ctx context.Context, r Reader) (*Parsed, error) {
	b, err := r.Bytes()
	if err != nil {
		return nil, retryable(fmt.Errorf("parser: read %s: %w", r.Filename(), err))
	}
	reader, err := pdf.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return nil, permanent(fmt.Errorf("parser: %s is not a valid PDF: %w", r.Filename(), err))
	}

	var elements []Element
	n := reader.NumPage()
	for i := 1; i <= n; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// a single unreadable page is not fatal to the whole document
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		pageNum := i
		elements = append(elements, Element{Text: text, Locator: Locator{Page: &pageNum}})
	}
	if len(elements) == 0 {
		return nil, permanent(fmt.Errorf("parser: %s yielded no extractable text", r.Filename()))
	}
	return &Parsed{Elements: elements, SourceModality: "text"}, nil
}

// --- DOCX -----------------------------------------------------------------

// DOCXParser extracts paragraph and table text from the main document
// part, one element per paragraph (table cell paragraphs included).
// Headers and footers are not read.
type DOCXParser struct{}

// docxTagRe matches one WordprocessingML tag in the raw document XML.
var docxTagRe = regexp.MustCompile(`<[^>]+>`)

func (p *DOCXParser) Accepts(contentType, filename string) bool {
	return contentType == "application/vnd.openxmlformats-officedocument.wordprocessingml.document" ||
		hasExt(filename, ".docx")
}

func (p *DOCXParser) Parse(ctx context.Context, r Reader) (*Parsed, error) {
	b, err := r.Bytes()
	if err != nil {
		return nil, retryable(fmt.Errorf("parser: read %s: %w", r.Filename(), err))
	}
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return nil, permanent(fmt.Errorf("parser: %s is not a valid DOCX: %w", r.Filename(), err))
	}
	defer doc.Close()

	// GetContent returns the raw document XML: end each paragraph with a
	// newline, then drop the markup and decode XML entities.
	raw := strings.ReplaceAll(doc.Editable().GetContent(), "</w:p>", "\n")
	text := strings.TrimSpace(html.UnescapeString(docxTagRe.ReplaceAllString(raw, "")))
	if text == "" {
		return nil, permanent(fmt.Errorf("parser: %s yielded no extractable text", r.Filename()))
	}
	paragraphs := strings.Split(text, "\n")
	var elements []Element
	for _, para := range paragraphs {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		elements = append(elements, Element{Text: para})
	}
	return &Parsed{Elements: elements, SourceModality: "text"}, nil
}

// --- HTML -----------------------------------------------------------------

// HTMLParser strips tags via goquery, keeping block-level elements as
// separate chunker segments so paragraph boundaries survive.
type HTMLParser struct{}

func (p *HTMLParser) Accepts(contentType, filename string) bool {
	return strings.HasPrefix(contentType, "text/html") || hasExt(filename, ".html", ".htm")
}

func (p *HTMLParser) Parse(ctx context.Context, r Reader) (*Parsed, error) {
	b, err := r.Bytes()
	if err != nil {
		return nil, retryable(fmt.Errorf("parser: read %s: %w", r.Filename(), err))
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(b))
	if err != nil {
		return nil, permanent(fmt.Errorf("parser: %s is not valid HTML: %w", r.Filename(), err))
	}

	var elements []Element
	doc.Find("p, li, h1, h2, h3, h4, h5, h6, td").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text != "" {
			elements = append(elements, Element{Text: text})
		}
	})
	if len(elements) == 0 {
		// fall back to the whole body's text as one element
		text := strings.TrimSpace(doc.Find("body").Text())
		if text == "" {
			return nil, permanent(fmt.Errorf("parser: %s yielded no extractable text", r.Filename()))
		}
		elements = append(elements, Element{Text: text})
	}
	return &Parsed{Elements: elements, SourceModality: "text"}, nil
}

// --- image (OCR, optional) -------------------------------------------------

// ImageParser delegates to an external OCR HTTP backend; no OCR client
// library is attested anywhere in the example pack, so this talks to the
// configured endpoint directly over net/http, treating OCR as an external
// capability rather than an embeddable one (consistent with the spider and
// LLM adapters, which are also plain HTTP/RESP clients).
type ImageParser struct {
	Endpoint string
	Client   *http.Client
}

func (p *ImageParser) Accepts(contentType, filename string) bool {
	return strings.HasPrefix(contentType, "image/") || hasExt(filename, ".png", ".jpg", ".jpeg", ".tiff", ".bmp")
}

func (p *ImageParser) Parse(ctx context.Context, r Reader) (*Parsed, error) {
	if p.Endpoint == "" {
		return nil, permanent(fmt.Errorf("parser: OCR backend not configured"))
	}
	b, err := r.Bytes()
	if err != nil {
		return nil, retryable(fmt.Errorf("parser: read %s: %w", r.Filename(), err))
	}
	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.Endpoint, bytes.NewReader(b))
	if err != nil {
		return nil, permanent(fmt.Errorf("parser: build OCR request: %w", err))
	}
	req.Header.Set("Content-Type", r.ContentType())
	resp, err := client.Do(req)
	if err != nil {
		return nil, retryable(fmt.Errorf("parser: OCR backend unreachable: %w", err))
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return nil, retryable(fmt.Errorf("parser: OCR backend returned %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, permanent(fmt.Errorf("parser: OCR backend rejected image: %d", resp.StatusCode))
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, retryable(fmt.Errorf("parser: read OCR response: %w", err))
	}
	text := strings.TrimSpace(buf.String())
	if text == "" {
		return nil, permanent(fmt.Errorf("parser: OCR backend returned no text"))
	}
	return &Parsed{Text: text, SourceModality: "image"}, nil
}

// --- audio (ASR, optional) -------------------------------------------------

// AudioParser delegates to an external ASR HTTP backend the same way
// ImageParser delegates to OCR.
type AudioParser struct {
	Endpoint string
	Client   *http.Client
}

func (p *AudioParser) Accepts(contentType, filename string) bool {
	return strings.HasPrefix(contentType, "audio/") || hasExt(filename, ".mp3", ".wav", ".m4a", ".flac")
}

func (p *AudioParser) Parse(ctx context.Context, r Reader) (*Parsed, error) {
	if p.Endpoint == "" {
		return nil, permanent(fmt.Errorf("parser: ASR backend not configured"))
	}
	b, err := r.Bytes()
	if err != nil {
		return nil, retryable(fmt.Errorf("parser: read %s: %w", r.Filename(), err))
	}
	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.Endpoint, bytes.NewReader(b))
	if err != nil {
		return nil, permanent(fmt.Errorf("parser: build ASR request: %w", err))
	}
	req.Header.Set("Content-Type", r.ContentType())
	resp, err := client.Do(req)
	if err != nil {
		return nil, retryable(fmt.Errorf("parser: ASR backend unreachable: %w", err))
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return nil, retryable(fmt.Errorf("parser: ASR backend returned %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, permanent(fmt.Errorf("parser: ASR backend rejected audio: %d", resp.StatusCode))
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, retryable(fmt.Errorf("parser: read ASR response: %w", err))
	}
	transcript := strings.TrimSpace(buf.String())
	if transcript == "" {
		return nil, permanent(fmt.Errorf("parser: ASR backend returned no transcript"))
	}
	return &Parsed{Text: transcript, SourceModality: "audio"}, nil
}
