// Package parser extracts text (and, for optional modalities, OCR/ASR
// transcripts) from uploaded documents, routing by content-type and
// filename extension the way the teacher's CEL-evaluated ActivityPolicy
// router dispatches by resource kind (internal/cel), generalized here to
// dispatch by format instead of by API kind.
package parser

import (
	"context"
	"fmt"
	"strings"
)

// Element is one extracted fragment of a document, carrying its own
// optional locator (page number, time range, bounding box).
type Element struct {
	Text    string
	Locator Locator
	Source  string
}

// Locator is the union of locator fields the chunker later merges. Only the
// fields relevant to a given parser are populated.
type Locator struct {
	Page      *int
	Start     *float64
	End       *float64
	BBox      []float64
}

// HasAny reports whether any locator field is populated.
func (l Locator) HasAny() bool {
	return l.Page != nil || l.Start != nil || l.End != nil || len(l.BBox) > 0
}

// Parsed is a parser's output: either a flat fallback text, or a list of
// located elements (PDF pages, DOCX paragraphs, ...).
type Parsed struct {
	Text           string
	Elements       []Element
	SourceModality string // "text" | "image" | "audio"
}

// Failure classifies a parse error as retryable (transient OCR/ASR backend
// failure) or permanent (unsupported format, corrupt file).
type Failure struct {
	Retryable bool
	Err       error
}

func (f *Failure) Error() string { return f.Err.Error() }
func (f *Failure) Unwrap() error { return f.Err }

func retryable(err error) error  { return &Failure{Retryable: true, Err: err} }
func permanent(err error) error  { return &Failure{Retryable: false, Err: err} }

// IsRetryable reports whether err (if it is a *Failure) is retryable.
// A non-Failure error is treated as permanent: unclassified failures must
// not silently retry forever.
func IsRetryable(err error) bool {
	f, ok := err.(*Failure)
	return ok && f.Retryable
}

// Options gates the optional modalities. When a backend is disabled the
// router rejects the modality outright rather than degrading silently.
type Options struct {
	OCREnabled bool
	ASREnabled bool
}

// Parser extracts structured text from a stored document.
type Parser interface {
	// Accepts reports whether this parser handles the given content-type or
	// filename extension.
	Accepts(contentType, filename string) bool
	Parse(ctx context.Context, r Reader) (*Parsed, error)
}

// Reader is the minimal surface a parser needs from blobstore: the raw
// bytes and the identifying metadata used for dispatch and error messages.
type Reader interface {
	Bytes() ([]byte, error)
	ContentType() string
	Filename() string
}

// Router selects a concrete Parser by content-type/extension and refuses to
// guess when nothing matches or the modality is disabled.
type Router struct {
	parsers []Parser
}

func NewRouter(opts Options) *Router {
	r := &Router{}
	r.parsers = append(r.parsers,
		&TextParser{},
		&PDFParser{},
		&DOCXParser{},
		&HTMLParser{},
	)
	if opts.OCREnabled {
		r.parsers = append(r.parsers, &ImageParser{})
	}
	if opts.ASREnabled {
		r.parsers = append(r.parsers, &AudioParser{})
	}
	return r
}

// Parse dispatches to the first parser that accepts (contentType,
// filename), or returns a permanent failure if none match.
func (r *Router) Parse(ctx context.Context, src Reader) (*Parsed, error) {
	ct := src.ContentType()
	name := src.Filename()
	for _, p := range r.parsers {
		if p.Accepts(ct, name) {
			return p.Parse(ctx, src)
		}
	}
	return nil, permanent(fmt.Errorf("parser: no router entry for content-type %q, filename %q", ct, name))
}

func hasExt(filename string, exts ...string) bool {
	lower := strings.ToLower(filename)
	for _, e := range exts {
		if strings.HasSuffix(lower, e) {
			return true
		}
	}
	return false
}

// looksBinary applies a cheap heuristic: a NUL byte or a high proportion of
// non-printable bytes in the first KB means "not text", guarding against
// treating arbitrary binary uploads as UTF-8 text.
func looksBinary(b []byte) bool {
	n := len(b)
	if n > 1024 {
		n = 1024
	}
	sample := b[:n]
	if len(sample) == 0 {
		return false
	}
	nonPrintable := 0
	for _, c := range sample {
		if c == 0 {
			return true
		}
		if c < 0x09 || (c > 0x0d && c < 0x20) {
			nonPrintable++
		}
	}
	return float64(nonPrintable)/float64(len(sample)) > 0.3
}
