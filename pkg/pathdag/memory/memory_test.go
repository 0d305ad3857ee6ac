package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/pathdag/pathdag/pkg/pathdag"
)

func TestInsertAndQuery(t *testing.T) {
	ctx := context.Background()
	s := New()
	defer s.Close()

	links := []pathdag.Link{
		{Entity: 2, Parent: 1, PathID: 1, Depth: 0, Attrs: pathdag.Attributes{"w": 1}},
		{Entity: 3, Parent: 2, PathID: 1, Depth: 1},
		{Entity: 3, Parent: 1, PathID: 2, Depth: 0},
	}
	err := s.Update(ctx, func(tx pathdag.Tx) error {
		return tx.Insert(links...)
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	err = s.View(ctx, func(tx pathdag.ReadTx) error {
		byPath, err := tx.ByPath(1)
		if err != nil {
			return err
		}
		if len(byPath) != 2 {
			t.Errorf("ByPath(1) returned %d links, want 2", len(byPath))
		}
		if byPath[0].Depth != 0 || byPath[1].Depth != 1 {
			t.Errorf("ByPath(1) not ordered by depth: %+v", byPath)
		}

		in, err := tx.ByEntity(3)
		if err != nil {
			return err
		}
		if len(in) != 2 {
			t.Errorf("ByEntity(3) returned %d links, want 2", len(in))
		}

		out, err := tx.ByParent(1)
		if err != nil {
			return err
		}
		if len(out) != 2 {
			t.Errorf("ByParent(1) returned %d links, want 2", len(out))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
}

func TestRollbackLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	s := New()
	defer s.Close()

	boom := errors.New("boom")
	err := s.Update(ctx, func(tx pathdag.Tx) error {
		if err := tx.Insert(pathdag.Link{Entity: 2, Parent: 1, PathID: 1, Depth: 0}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Update error = %v, want %v", err, boom)
	}
	if s.Len() != 0 {
		t.Errorf("store has %d links after rollback, want 0", s.Len())
	}
}

func TestNextPathIDNeverReused(t *testing.T) {
	ctx := context.Background()
	s := New()
	defer s.Close()

	var first int64
	err := s.Update(ctx, func(tx pathdag.Tx) error {
		var err error
		first, err = tx.NextPathID()
		return err
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	// A rolled-back transaction burns its id.
	_ = s.Update(ctx, func(tx pathdag.Tx) error {
		if _, err := tx.NextPathID(); err != nil {
			return err
		}
		return errors.New("rollback")
	})

	var third int64
	err = s.Update(ctx, func(tx pathdag.Tx) error {
		var err error
		third, err = tx.NextPathID()
		return err
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if third <= first+1 {
		t.Errorf("id after rollback = %d, want > %d (burned ids never reissued)", third, first+1)
	}
}

func TestDeletePath(t *testing.T) {
	ctx := context.Background()
	s := New()
	defer s.Close()

	err := s.Update(ctx, func(tx pathdag.Tx) error {
		return tx.Insert(
			pathdag.Link{Entity: 2, Parent: 1, PathID: 1, Depth: 0},
			pathdag.Link{Entity: 3, Parent: 2, PathID: 1, Depth: 1},
			pathdag.Link{Entity: 3, Parent: 1, PathID: 2, Depth: 0},
		)
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	err = s.Update(ctx, func(tx pathdag.Tx) error {
		return tx.DeletePath(1)
	})
	if err != nil {
		t.Fatalf("DeletePath: %v", err)
	}

	err = s.View(ctx, func(tx pathdag.ReadTx) error {
		gone, _ := tx.ByPath(1)
		if len(gone) != 0 {
			t.Errorf("path 1 still has %d links", len(gone))
		}
		kept, _ := tx.ByPath(2)
		if len(kept) != 1 {
			t.Errorf("path 2 has %d links, want 1", len(kept))
		}
		// Secondary indexes must not retain deleted records.
		in, _ := tx.ByEntity(3)
		if len(in) != 1 {
			t.Errorf("ByEntity(3) has %d links, want 1", len(in))
		}
		out, _ := tx.ByParent(2)
		if len(out) != 0 {
			t.Errorf("ByParent(2) has %d links, want 0", len(out))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
}

func TestUpdateAttrs(t *testing.T) {
	ctx := context.Background()
	s := New()
	defer s.Close()

	err := s.Update(ctx, func(tx pathdag.Tx) error {
		return tx.Insert(
			pathdag.Link{Entity: 2, Parent: 1, PathID: 1, Depth: 0, Attrs: pathdag.Attributes{"v": "old"}},
			pathdag.Link{Entity: 2, Parent: 1, PathID: 2, Depth: 1, Attrs: pathdag.Attributes{"v": "old"}},
			pathdag.Link{Entity: 2, Parent: 9, PathID: 3, Depth: 0, Attrs: pathdag.Attributes{"v": "other"}},
		)
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	err = s.Update(ctx, func(tx pathdag.Tx) error {
		n, err := tx.UpdateAttrs(2, 1, pathdag.Attributes{"v": "new"})
		if err != nil {
			return err
		}
		if n != 2 {
			t.Errorf("UpdateAttrs updated %d records, want 2", n)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("UpdateAttrs: %v", err)
	}

	err = s.View(ctx, func(tx pathdag.ReadTx) error {
		in, _ := tx.ByEntity(2)
		for _, l := range in {
			want := "new"
			if l.Parent == 9 {
				want = "other"
			}
			if l.Attrs["v"] != want {
				t.Errorf("link %+v attrs = %v, want v=%s", l, l.Attrs, want)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
}
