package cache

import "testing"

func TestBlockCacheEviction(t *testing.T) {
	c := New(2)
	c.Put(Key{TableID: 1, Block: 0}, []byte("a"))
	c.Put(Key{TableID: 1, Block: 1}, []byte("b"))
	c.Put(Key{TableID: 1, Block: 2}, []byte("c"))

	if _, ok := c.Get(Key{TableID: 1, Block: 0}); ok {
		t.Fatalf("expected block 0 to be evicted")
	}
	if v, ok := c.Get(Key{TableID: 1, Block: 2}); !ok || string(v) != "c" {
		t.Fatalf("expected block 2 present")
	}
}

func TestBlockCacheInvalidate(t *testing.T) {
	c := New(10)
	c.Put(Key{TableID: 1, Block: 0}, []byte("a"))
	c.Put(Key{TableID: 2, Block: 0}, []byte("b"))

	c.Invalidate(1)

	if _, ok := c.Get(Key{TableID: 1, Block: 0}); ok {
		t.Fatalf("expected table 1 blocks to be invalidated")
	}
	if _, ok := c.Get(Key{TableID: 2, Block: 0}); !ok {
		t.Fatalf("expected table 2 blocks to survive")
	}
}

func TestBlockCacheStats(t *testing.T) {
	c := New(10)
	c.Put(Key{TableID: 1, Block: 0}, []byte("a"))
	c.Get(Key{TableID: 1, Block: 0})
	c.Get(Key{TableID: 1, Block: 1})

	hits, misses, rate := c.Stats()
	if hits != 1 || misses != 1 {
		t.Fatalf("got hits=%d misses=%d", hits, misses)
	}
	if rate != 0.5 {
		t.Fatalf("got hit rate %f, want 0.5", rate)
	}
}
