package knowledge

import "strings"

const (
	// DefaultChunkSize and DefaultChunkOverlap bound the character length of
	// indexed chunks and how much adjacent chunks share.
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

var separators = []string{"\n\n", "\n", " ", ""}

// SplitText splits text into chunks of at most chunkSize characters,
// preferring paragraph boundaries, then lines, then words. Adjacent chunks
// overlap by up to overlap characters so facts spanning a boundary stay
// retrievable.
func SplitText(text string, chunkSize, overlap int) []string {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = DefaultChunkOverlap
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	pieces := splitRecursive(text, chunkSize, separators)
	return mergePieces(pieces, chunkSize, overlap)
}

func splitRecursive(text string, chunkSize int, seps []string) []string {
	if len([]rune(text)) <= chunkSize {
		return []string{text}
	}

	sep := seps[len(seps)-1]
	rest := seps
	for i, s := range seps {
		if s == "" || strings.Contains(text, s) {
			sep, rest = s, seps[i+1:]
			break
		}
	}

	var parts []string
	if sep == "" {
		runes := []rune(text)
		for start := 0; start < len(runes); start += chunkSize {
			end := min(start+chunkSize, len(runes))
			parts = append(parts, string(runes[start:end]))
		}
		return parts
	}

	for _, piece := range strings.Split(text, sep) {
		if piece == "" {
			continue
		}
		if len([]rune(piece)) > chunkSize {
			parts = append(parts, splitRecursive(piece, chunkSize, rest)...)
		} else {
			parts = append(parts, piece)
		}
	}
	return parts
}

func mergePieces(pieces []string, chunkSize, overlap int) []string {
	var chunks []string
	var cur strings.Builder

	flush := func() {
		s := strings.TrimSpace(cur.String())
		if s != "" {
			chunks = append(chunks, s)
		}
		cur.Reset()
	}

	for _, p := range pieces {
		if cur.Len() > 0 && len([]rune(cur.String()))+len([]rune(p))+1 > chunkSize {
			carried := tail(cur.String(), overlap)
			flush()
			// the carry must not push the next chunk over the limit;
			// drop it at boundaries where the piece alone nearly fills a chunk
			if carried != "" && len([]rune(carried))+len([]rune(p))+2 <= chunkSize {
				cur.WriteString(carried)
				cur.WriteString(" ")
			}
		}
		if cur.Len() > 0 {
			cur.WriteString("\n")
		}
		cur.WriteString(p)
	}
	flush()
	return chunks
}

// tail returns the last n runes of s, cut at a word boundary when possible.
func tail(s string, n int) string {
	runes := []rune(strings.TrimSpace(s))
	if n <= 0 || len(runes) <= n {
		return ""
	}
	t := string(runes[len(runes)-n:])
	if idx := strings.IndexAny(t, " \n"); idx >= 0 {
		t = strings.TrimSpace(t[idx:])
	}
	return t
}
