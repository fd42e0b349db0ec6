package handle

import "testing"

type fakeObject struct {
	kind     string
	destroys int
}

func (f *fakeObject) Kind() string { return f.kind }
func (f *fakeObject) Destroy()     { f.destroys++ }

func TestOpenLookupClose(t *testing.T) {
	tbl := NewTable()
	obj := &fakeObject{kind: "file"}

	h := tbl.Open(obj)
	if h == Invalid {
		t.Fatalf("Open returned Invalid")
	}

	got, ok := tbl.Lookup(h)
	if !ok {
		t.Fatalf("Lookup(%d) not found", h)
	}
	if got != obj {
		t.Fatalf("Lookup(%d) = %v, want %v", h, got, obj)
	}

	if err := tbl.Close(h); err != nil {
		t.Fatalf("Close(%d) failed: %v", h, err)
	}
	if obj.destroys != 1 {
		t.Fatalf("destroys = %d, want 1", obj.destroys)
	}
	if _, ok := tbl.Lookup(h); ok {
		t.Fatalf("Lookup(%d) succeeded after Close", h)
	}
}

func TestSmallestFreeHandleReuse(t *testing.T) {
	tbl := NewTable()

	h1 := tbl.Open(&fakeObject{kind: "a"})
	h2 := tbl.Open(&fakeObject{kind: "b"})
	h3 := tbl.Open(&fakeObject{kind: "c"})

	if err := tbl.Close(h2); err != nil {
		t.Fatalf("Close(%d) failed: %v", h2, err)
	}

	h4 := tbl.Open(&fakeObject{kind: "d"})
	if h4 != h2 {
		t.Fatalf("Open reused handle %d, want the freed %d", h4, h2)
	}

	_ = h1
	_ = h3
}

func TestDuplicateKeepsObjectAliveUntilLastClose(t *testing.T) {
	tbl := NewTable()
	obj := &fakeObject{kind: "mutex"}
	h := tbl.Open(obj)

	if err := tbl.Duplicate(h); err != nil {
		t.Fatalf("Duplicate failed: %v", err)
	}

	if err := tbl.Close(h); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if obj.destroys != 0 {
		t.Fatalf("object destroyed after only one of two Close calls")
	}
	if _, ok := tbl.Lookup(h); !ok {
		t.Fatalf("Lookup failed while a reference is still outstanding")
	}

	if err := tbl.Close(h); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if obj.destroys != 1 {
		t.Fatalf("destroys = %d, want 1 after final Close", obj.destroys)
	}
}

func TestCloseDefersDestroyUntilLastWaiterLeaves(t *testing.T) {
	tbl := NewTable()
	obj := &fakeObject{kind: "event"}
	h := tbl.Open(obj)

	tbl.EnterWait(h)

	if err := tbl.Close(h); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if obj.destroys != 0 {
		t.Fatalf("object destroyed while a waiter is still blocked")
	}

	tbl.LeaveWait(h)
	if obj.destroys != 1 {
		t.Fatalf("destroys = %d, want 1 once the last waiter left", obj.destroys)
	}
}

func TestCloseUnknownHandle(t *testing.T) {
	tbl := NewTable()
	if err := tbl.Close(H(999)); err == nil {
		t.Fatalf("Close of an unknown handle succeeded")
	}
}

func TestCount(t *testing.T) {
	tbl := NewTable()
	if got := tbl.Count(); got != 0 {
		t.Fatalf("Count() = %d, want 0", got)
	}
	h := tbl.Open(&fakeObject{kind: "a"})
	if got := tbl.Count(); got != 1 {
		t.Fatalf("Count() = %d, want 1", got)
	}
	tbl.Close(h)
	if got := tbl.Count(); got != 0 {
		t.Fatalf("Count() = %d, want 0 after Close", got)
	}
}
