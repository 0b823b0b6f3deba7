package position

import (
	"testing"

	"github.com/avitrack/avitrack/internal/keyword"
	"github.com/avitrack/avitrack/internal/types"
)

func feed() []types.Listing {
	return []types.Listing{
		{Title: "Ремонт квартир под ключ", Rank: 1},
		{Title: "Продам диван", Rank: 2},
		{Title: "Ремонт квартир недорого", Rank: 3},
		{Title: "Сантехник на дом", Rank: 4},
		{Title: "РЕМОНТ КВАРТИР и офисов", Rank: 5},
	}
}

func TestResolvePreservesRankOrder(t *testing.T) {
	rs, err := keyword.Compile([]string{"ремонт квартир"})
	if err != nil {
		t.Fatalf("got unexpected error: %v", err)
	}
	matched := Resolve(feed(), rs)
	if len(matched) != 3 {
		t.Fatalf("expected 3 matches but got %d", len(matched))
	}
	wantRanks := []int{1, 3, 5}
	for i, l := range matched {
		if l.Rank != wantRanks[i] {
			t.Fatalf("expected rank %d at index %d but got %d", wantRanks[i], i, l.Rank)
		}
	}
}

func TestResolveNeverReRanks(t *testing.T) {
	rs, err := keyword.Compile([]string{"диван"})
	if err != nil {
		t.Fatalf("got unexpected error: %v", err)
	}
	matched := Resolve(feed(), rs)
	if len(matched) != 1 {
		t.Fatalf("expected 1 match but got %d", len(matched))
	}
	if matched[0].Rank != 2 {
		t.Fatalf("expected the original rank 2 but got %d", matched[0].Rank)
	}
}

func TestResolveNoMatchesReturnsEmptyNonNil(t *testing.T) {
	rs, err := keyword.Compile([]string{"велосипед"})
	if err != nil {
		t.Fatalf("got unexpected error: %v", err)
	}
	matched := Resolve(feed(), rs)
	if matched == nil {
		t.Fatalf("expected an empty slice, not nil")
	}
	if len(matched) != 0 {
		t.Fatalf("expected no matches but got %d", len(matched))
	}
}
