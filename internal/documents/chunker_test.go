package documents

import (
	"strings"
	"testing"
)

func TestBuildChunksFirstChunkIsMetadata(t *testing.T) {
	pages := []PageText{
		{Number: 1, Text: "Acme Holdings plc\nAnnual Report 2025\n\nNote 1: Basis of preparation."},
		{Number: 2, Text: "Note 2: Investment property is measured at fair value."},
	}

	chunks := BuildChunks(pages)
	if len(chunks) == 0 {
		t.Fatal("no chunks produced")
	}
	if chunks[0].ChunkType != ChunkTypeMetadata {
		t.Fatalf("first chunk type = %q, want metadata", chunks[0].ChunkType)
	}
	if chunks[0].PageNumber != 1 {
		t.Fatalf("first chunk page = %d, want 1", chunks[0].PageNumber)
	}
	for _, c := range chunks[1:] {
		if c.ChunkType != ChunkTypeContent {
			t.Fatalf("chunk %d type = %q, want content", c.ChunkIndex, c.ChunkType)
		}
	}
}

func TestBuildChunksIndexAndPages(t *testing.T) {
	pages := []PageText{
		{Number: 1, Text: "alpha\n\nbeta"},
		{Number: 3, Text: "gamma"},
	}

	chunks := BuildChunks(pages)
	for i, c := range chunks {
		if c.ChunkIndex != i {
			t.Fatalf("chunk %d has index %d", i, c.ChunkIndex)
		}
	}
	last := chunks[len(chunks)-1]
	if last.PageNumber != 3 {
		t.Fatalf("last chunk page = %d, want 3", last.PageNumber)
	}
}

func TestBuildChunksBoundsOversizedParagraph(t *testing.T) {
	long := strings.Repeat("investment property disclosure ", 200)
	chunks := BuildChunks([]PageText{{Number: 1, Text: long}})

	if len(chunks) < 2 {
		t.Fatalf("oversized paragraph produced %d chunks, want a split", len(chunks))
	}
	for _, c := range chunks {
		if len(c.Text) > maxChunkChars+2 {
			t.Fatalf("chunk %d is %d chars, exceeds bound", c.ChunkIndex, len(c.Text))
		}
		if strings.TrimSpace(c.Text) == "" {
			t.Fatalf("chunk %d is blank", c.ChunkIndex)
		}
	}
}

func TestBuildChunksSkipsEmptyPages(t *testing.T) {
	pages := []PageText{
		{Number: 1, Text: "   \n\n  "},
		{Number: 2, Text: "real content"},
	}

	chunks := BuildChunks(pages)
	if len(chunks) != 1 {
		t.Fatalf("chunks = %d, want 1", len(chunks))
	}
	if chunks[0].PageNumber != 2 {
		t.Fatalf("page = %d, want 2", chunks[0].PageNumber)
	}
}
