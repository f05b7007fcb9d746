package domain

import (
	"reflect"
	"testing"
)

func TestCleanKeywords(t *testing.T) {
	got := CleanKeywords([]string{" audio ", "", "Audio", "bluetooth", "  "})
	want := []string{"audio", "bluetooth"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("CleanKeywords = %v, want %v", got, want)
	}
	if got := CleanKeywords(nil); got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", got)
	}
}

func TestEmbeddingText(t *testing.T) {
	got := EmbeddingText("Headphones", "Over-ear audio", []string{"audio", "music"})
	want := "TITLE: Headphones\nDESCRIPTION: Over-ear audio\nKEYWORDS: audio, music"
	if got != want {
		t.Errorf("EmbeddingText = %q, want %q", got, want)
	}
}
