package grpc

import (
	"testing"
)

func TestPool_RoundRobin(t *testing.T) {
	p := NewPool(WithSize(2))
	defer p.Close()

	const target = "localhost:50051"
	a, err := p.GetConnection(target)
	if err != nil {
		t.Fatalf("GetConnection error = %v", err)
	}
	b, _ := p.GetConnection(target)
	if a == b {
		t.Error("second call should create a second connection")
	}
	if p.Size(target) != 2 {
		t.Errorf("Size = %d, want 2", p.Size(target))
	}

	c, _ := p.GetConnection(target)
	d, _ := p.GetConnection(target)
	if c != a || d != b {
		t.Error("connections should be reused in turn")
	}
}

func TestPool_ReplacesShutdownConnection(t *testing.T) {
	p := NewPool()
	defer p.Close()

	const target = "localhost:50051"
	a, _ := p.GetConnection(target)
	a.Close()
	b, err := p.GetConnection(target)
	if err != nil {
		t.Fatalf("GetConnection error = %v", err)
	}
	if a == b {
		t.Error("closed connection should be replaced")
	}
	if p.Size(target) != 1 {
		t.Errorf("Size = %d, want 1", p.Size(target))
	}
}

func TestPool_Close(t *testing.T) {
	p := NewPool()
	if _, err := p.GetConnection("localhost:50051"); err != nil {
		t.Fatal(err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close error = %v", err)
	}
	if p.Size("localhost:50051") != 0 {
		t.Error("Close should forget connections")
	}
}
