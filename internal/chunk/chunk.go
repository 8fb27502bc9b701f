// Package chunk splits parser output into the ordered, stably-identified
// chunks the rest of the ingest pipeline persists. The algorithm is ported
// line-for-line in behavior (not syntax) from the structure-aware chunker
// it is grounded on, so chunk_id/content_hash/token_count are bit-for-bit
// reproducible against the same input.
package chunk

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/yaccii-voc/kbcore/internal/model"
	"github.com/yaccii-voc/kbcore/internal/parser"
)

const (
	DefaultMaxChars = 800
	DefaultOverlap  = 80
)

// Chunker is a deterministic structure-aware splitter.
type Chunker struct {
	MaxChars int
	Overlap  int
}

func New() *Chunker {
	return &Chunker{MaxChars: DefaultMaxChars, Overlap: DefaultOverlap}
}

type segment struct {
	text string
	loc  parser.Locator
}

// Chunk splits parsed into an ordered list of chunks for (documentID,
// indexVersion). Returns no error: an empty result (zero chunks) is the
// caller's signal to fail the job, per the specification's "must yield at
// least one chunk".
func (c *Chunker) Chunk(parsed *parser.Parsed, documentID int64, space string, indexVersion int64) []model.Chunk {
	maxChars := c.MaxChars
	if maxChars < 100 {
		maxChars = 100
	}
	overlap := c.Overlap
	if overlap < 0 {
		overlap = 0
	}
	if overlap > maxChars/2 {
		overlap = maxChars / 2
	}

	segs := buildSegments(parsed)
	if len(segs) == 0 {
		return nil
	}

	modality := normalizeModality(parsed.SourceModality)

	var chunks []model.Chunk
	var bufParts []string
	var bufLocs []parser.Locator
	var bufStart *int
	globalChar := 0
	chunkIndex := 0

	flush := func() {
		content := strings.TrimSpace(strings.Join(filterEmpty(bufParts), "\n"))
		if content == "" {
			bufParts, bufLocs, bufStart = nil, nil, nil
			return
		}
		charStart := 0
		if bufStart != nil {
			charStart = *bufStart
		}
		charEnd := charStart + len(content)

		locator := mergeLocator(bufLocs, charStart, charEnd)
		chunkID := sha1Hex(fmt.Sprintf("%d:%d:%d", documentID, indexVersion, chunkIndex))
		contentHash := sha256Hex(content)
		tokenCount := estimateTokenCount(content)

		chunks = append(chunks, model.Chunk{
			ChunkID:      chunkID,
			DocumentID:   documentID,
			SpaceCode:    space,
			IndexVersion: indexVersion,
			ChunkIndex:   chunkIndex,
			Modality:     modality,
			Locator:      locator,
			Content:      content,
			ContentHash:  contentHash,
			TokenCount:   tokenCount,
		})

		if overlap > 0 && len(content) > overlap {
			tail := content[len(content)-overlap:]
			bufParts = []string{tail}
			if len(bufLocs) > 0 {
				bufLocs = []parser.Locator{bufLocs[len(bufLocs)-1]}
			} else {
				bufLocs = nil
			}
			start := charEnd - overlap
			bufStart = &start
		} else {
			bufParts, bufLocs, bufStart = nil, nil, nil
		}
	}

	for _, seg := range segs {
		text := strings.TrimSpace(seg.text)
		if text == "" {
			continue
		}
		for _, piece := range splitLarge(text, maxChars) {
			piece = strings.TrimSpace(piece)
			if piece == "" {
				continue
			}
			if bufStart == nil {
				start := globalChar
				bufStart = &start
			}
			projected := len(strings.Join(append(append([]string{}, bufParts...), piece), "\n"))
			if projected > maxChars && len(bufParts) > 0 {
				flush()
				chunkIndex++
				if bufStart == nil {
					start := globalChar
					bufStart = &start
				}
			}
			bufParts = append(bufParts, piece)
			if seg.loc.HasAny() {
				bufLocs = append(bufLocs, seg.loc)
			}
			globalChar += len(piece) + 1
		}
	}
	if len(bufParts) > 0 {
		flush()
	}
	return chunks
}

func buildSegments(parsed *parser.Parsed) []segment {
	var segs []segment
	if len(parsed.Elements) > 0 {
		for _, e := range parsed.Elements {
			if strings.TrimSpace(e.Text) == "" {
				continue
			}
			segs = append(segs, segment{text: e.Text, loc: e.Locator})
		}
		return segs
	}
	t := strings.TrimSpace(parsed.Text)
	if t != "" {
		segs = append(segs, segment{text: t})
	}
	return segs
}

func splitLarge(text string, maxChars int) []string {
	if len(text) <= maxChars {
		return []string{text}
	}
	var out []string
	start := 0
	for start < len(text) {
		end := start + maxChars
		if end > len(text) {
			end = len(text)
		}
		out = append(out, text[start:end])
		start = end
	}
	return out
}

func mergeLocator(locs []parser.Locator, charStart, charEnd int) model.ChunkLocator {
	locator := model.ChunkLocator{CharStart: charStart, CharEnd: charEnd}

	pageSet := map[int]struct{}{}
	var starts, ends []float64
	var bboxes []interface{}

	for _, loc := range locs {
		if loc.Page != nil {
			pageSet[*loc.Page] = struct{}{}
		}
		if loc.Start != nil {
			starts = append(starts, *loc.Start)
		}
		if loc.End != nil {
			ends = append(ends, *loc.End)
		}
		if len(loc.BBox) > 0 {
			bboxes = append(bboxes, loc.BBox)
		}
	}

	if len(pageSet) > 0 {
		pages := make([]int, 0, len(pageSet))
		for p := range pageSet {
			pages = append(pages, p)
		}
		sort.Ints(pages)
		locator.Pages = pages
	}
	if len(starts) > 0 && len(ends) > 0 {
		locator.TimeRange = &model.TimeRange{Start: minOf(starts), End: maxOf(ends)}
	}
	if len(bboxes) > 0 {
		if len(bboxes) > 50 {
			bboxes = bboxes[:50]
		}
		locator.BBoxes = bboxes
	}
	return locator
}

func minOf(xs []float64) float64 {
	m := xs[0]
	for _, x := range xs[1:] {
		if x < m {
			m = x
		}
	}
	return m
}

func maxOf(xs []float64) float64 {
	m := xs[0]
	for _, x := range xs[1:] {
		if x > m {
			m = x
		}
	}
	return m
}

func filterEmpty(parts []string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func normalizeModality(m string) model.Modality {
	switch strings.ToLower(strings.TrimSpace(m)) {
	case "image":
		return model.ModalityImage
	case "audio":
		return model.ModalityAudio
	default:
		return model.ModalityText
	}
}

func sha1Hex(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:])
}

func sha256Hex(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

var (
	cjkRe   = regexp.MustCompile(`[\x{4e00}-\x{9fff}]`)
	wordRe  = regexp.MustCompile(`[A-Za-z0-9]+`)
	otherRe = regexp.MustCompile(`[^\s\x{4e00}-\x{9fff}A-Za-z0-9]`)
)

// estimateTokenCount is a lightweight, tokenizer-free approximation: CJK
// characters count 1 each, contiguous ASCII alphanumeric runs count 1 per
// run, and everything else is divided by 4.
func estimateTokenCount(text string) int {
	if text == "" {
		return 0
	}
	cjk := len(cjkRe.FindAllString(text, -1))
	words := len(wordRe.FindAllString(text, -1))
	other := len(otherRe.FindAllString(text, -1))
	return cjk + words + other/4
}
