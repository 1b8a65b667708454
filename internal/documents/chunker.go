package documents

import "strings"

// maxChunkChars bounds a chunk to roughly one indexable disclosure.
const maxChunkChars = 1000

// BuildChunks splits per-page text into paragraph-bounded chunks with page and
// position metadata. The opening chunk of the first page is tagged as
// metadata (entity name, report title, period); everything else is content.
func BuildChunks(pages []PageText) []Chunk {
	var chunks []Chunk
	index := 0
	for _, page := range pages {
		for _, piece := range splitParagraphBounded(page.Text, maxChunkChars) {
			chunkType := ChunkTypeContent
			if index == 0 && page.Number <= 1 {
				chunkType = ChunkTypeMetadata
			}
			chunks = append(chunks, Chunk{
				Text:       piece,
				PageNumber: page.Number,
				ChunkIndex: index,
				ChunkType:  chunkType,
			})
			index++
		}
	}
	return chunks
}

// splitParagraphBounded packs paragraphs into pieces no longer than maxLen,
// splitting oversized paragraphs on the nearest space.
func splitParagraphBounded(text string, maxLen int) []string {
	var pieces []string
	var current strings.Builder

	flush := func() {
		if trimmed := strings.TrimSpace(current.String()); trimmed != "" {
			pieces = append(pieces, trimmed)
		}
		current.Reset()
	}

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		for len(para) > maxLen {
			cut := strings.LastIndex(para[:maxLen], " ")
			if cut <= 0 {
				cut = maxLen
			}
			flush()
			pieces = append(pieces, strings.TrimSpace(para[:cut]))
			para = strings.TrimSpace(para[cut:])
		}
		if current.Len()+len(para) >= maxLen {
			flush()
		}
		current.WriteString(para)
		current.WriteString("\n\n")
	}
	flush()
	return pieces
}
