package models

import "testing"

func TestProgressPercentage(t *testing.T) {
	cases := []struct {
		name      string
		total     int
		processed int
		want      int
	}{
		{"no pages yet", 0, 0, 0},
		{"negative total", -5, 3, 0},
		{"halfway", 10, 5, 50},
		{"done", 10, 10, 100},
		{"rounds down", 3, 2, 66},
		{"clamped above", 10, 15, 100},
		{"clamped below", 10, -5, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ps := ProcessingStatus{TotalPages: tc.total, ProcessedPages: tc.processed}
			if got := ps.ProgressPercentage(); got != tc.want {
				t.Errorf("ProgressPercentage() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestIsCompleted(t *testing.T) {
	ps := ProcessingStatus{
		ExtractionCompleted: true,
		ChunkingCompleted:   true,
		EmbeddingCompleted:  true,
	}
	if ps.IsCompleted() {
		t.Error("expected incomplete while indexing is pending")
	}
	ps.IndexingCompleted = true
	if !ps.IsCompleted() {
		t.Error("expected completed with all stages done")
	}
}
