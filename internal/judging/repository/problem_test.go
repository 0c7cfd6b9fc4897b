package repository

import (
	"context"
	"errors"
	"testing"

	"judgeflow/internal/common/db"
)

func TestGetBySlugCachesHitsAndMisses(t *testing.T) {
	c, _ := newMiniCache(t)
	reads := 0
	fake := &fakeDB{onRow: func(query string, args []interface{}) db.Row {
		reads++
		if args[0] == "two-sum" {
			return fakeRow{values: []interface{}{int64(1), "two-sum", "Two Sum", "desc", "in", "out", "n<=1e4", "easy"}}
		}
		return fakeRow{err: errNoRows}
	}}
	repo := NewProblemRepository(fake, c)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		p, err := repo.GetBySlug(ctx, "two-sum")
		if err != nil || p.ID != 1 || p.Title != "Two Sum" {
			t.Fatalf("unexpected problem %+v, %v", p, err)
		}
	}
	for i := 0; i < 2; i++ {
		if _, err := repo.GetBySlug(ctx, "nope"); !errors.Is(err, ErrProblemNotFound) {
			t.Fatalf("expected ErrProblemNotFound, got %v", err)
		}
	}
	if reads != 2 {
		t.Fatalf("expected one db read per slug, got %d", reads)
	}
}

func TestGetBoilerplateKeepsScaffoldThroughCache(t *testing.T) {
	c, _ := newMiniCache(t)
	reads := 0
	fake := &fakeDB{onRow: func(query string, args []interface{}) db.Row {
		reads++
		if args[1] != 71 {
			return fakeRow{err: errNoRows}
		}
		return fakeRow{values: []interface{}{int64(1), 71, "Python", "def solve(): pass", "# main\ndef solve(): pass\nsolve()"}}
	}}
	repo := NewProblemRepository(fake, c)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		bp, err := repo.GetBoilerplate(ctx, 1, 71)
		if err != nil {
			t.Fatalf("GetBoilerplate: %v", err)
		}
		if bp.FullScaffold == "" || bp.EditableStub != "def solve(): pass" {
			t.Fatalf("unexpected boilerplate %+v", bp)
		}
	}
	if reads != 1 {
		t.Fatalf("expected cached boilerplate, reads=%d", reads)
	}
	if _, err := repo.GetBoilerplate(ctx, 1, 54); !errors.Is(err, ErrBoilerplateNotFound) {
		t.Fatalf("expected ErrBoilerplateNotFound, got %v", err)
	}
}
