package tabular

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func sampleTexts(n int) []string {
	texts := make([]string, n)
	for i := range texts {
		texts[i] = fmt.Sprintf("NO,名称\n%03d,\"施設 %d\"\n%03d,\"x,y\"\n", i, i, i+100)
	}
	return texts
}

func TestParseAll_MatchesSynchronous(t *testing.T) {
	texts := sampleTexts(7)

	want := make([]Dataset, len(texts))
	for i, text := range texts {
		want[i] = Parse(text)
	}

	for _, workers := range []int{-1, 0, 1, 3, 16} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			got := ParseAll(context.Background(), texts, workers)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("ParseAll mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseAll_Empty(t *testing.T) {
	got := ParseAll(context.Background(), nil, 4)
	if len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
}

func TestParseAll_FallsBackWhenWorkerPanics(t *testing.T) {
	orig := ParseFunc
	defer func() { ParseFunc = orig }()
	ParseFunc = func(string) Dataset { panic("worker unavailable") }

	texts := sampleTexts(3)
	got := ParseAll(context.Background(), texts, 2)

	for i, text := range texts {
		if diff := cmp.Diff(Parse(text), got[i]); diff != "" {
			t.Errorf("dataset %d mismatch after fallback (-want +got):\n%s", i, diff)
		}
	}
}

func TestParseAll_FallsBackWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	texts := sampleTexts(4)
	got := ParseAll(ctx, texts, 2)

	if len(got) != len(texts) {
		t.Fatalf("len = %d, want %d", len(got), len(texts))
	}
	for i, text := range texts {
		if diff := cmp.Diff(Parse(text), got[i]); diff != "" {
			t.Errorf("dataset %d mismatch (-want +got):\n%s", i, diff)
		}
	}
}
