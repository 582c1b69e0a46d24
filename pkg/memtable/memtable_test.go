package memtable

import "testing"

func TestMemTablePutGetDelete(t *testing.T) {
	m := New()
	m.Put([]byte("b"), []byte("2"))
	m.Put([]byte("a"), []byte("1"))
	m.Put([]byte("c"), []byte("3"))

	if v, ok := m.Get([]byte("a")); !ok || string(v) != "1" {
		t.Fatalf("Get(a) = %q, %v", v, ok)
	}

	m.Delete([]byte("b"))
	v, ok := m.Get([]byte("b"))
	if !ok {
		t.Fatalf("expected tombstone to be found")
	}
	if v != nil {
		t.Fatalf("expected tombstone value nil, got %q", v)
	}

	if _, ok := m.Get([]byte("z")); ok {
		t.Fatalf("expected missing key to be not found")
	}
}

func TestMemTableIteratorOrder(t *testing.T) {
	m := New()
	for _, k := range []string{"d", "b", "a", "c", "e"} {
		m.Put([]byte(k), []byte(k))
	}

	it := m.Iterator(nil, nil)
	var got []string
	for it.Valid() {
		got = append(got, string(it.Key()))
		it.Next()
	}
	want := []string{"a", "b", "c", "d", "e"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestMemTableIteratorBounds(t *testing.T) {
	m := New()
	for _, k := range []string{"a", "b", "c", "d", "e"} {
		m.Put([]byte(k), []byte(k))
	}
	it := m.Iterator([]byte("b"), []byte("d"))
	var got []string
	for it.Valid() {
		got = append(got, string(it.Key()))
		it.Next()
	}
	if len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Fatalf("got %v, want [b c]", got)
	}
}

func TestMemTableApproximateSize(t *testing.T) {
	m := New()
	if m.ApproximateSize() != 0 {
		t.Fatalf("expected empty memtable to have zero size")
	}
	m.Put([]byte("key"), []byte("value"))
	if m.ApproximateSize() != 8 {
		t.Fatalf("expected size 8, got %d", m.ApproximateSize())
	}
	m.Put([]byte("key"), []byte("v2"))
	if m.ApproximateSize() != 5 {
		t.Fatalf("expected size 5 after overwrite, got %d", m.ApproximateSize())
	}
}
