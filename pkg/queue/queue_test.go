package queue

import (
	"sync"
	"testing"
)

func TestFIFOOrder(t *testing.T) {
	q := New[int]()
	for i := 0; i < 100; i++ {
		q.Push(i)
	}
	for i := 0; i < 100; i++ {
		v, ok := q.Pop()
		if !ok {
			t.Fatalf("expected item at %d", i)
		}
		if v != i {
			t.Fatalf("expected %d, got %d", i, v)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Fatalf("expected empty queue")
	}
}

func TestDrainReturnsAllInOrder(t *testing.T) {
	q := New[string]()
	q.Push("a")
	q.Push("b")
	q.Push("c")
	got := q.Drain()
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("unexpected drain result %v", got)
	}
	if q.Len() != 0 {
		t.Fatalf("expected empty after drain")
	}
}

func TestConcurrentProducersSingleConsumer(t *testing.T) {
	q := New[int]()
	const producers = 8
	const perProducer = 500

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(base + i)
			}
		}(p * perProducer)
	}
	wg.Wait()

	seen := make(map[int]bool, producers*perProducer)
	lastPerProducer := make(map[int]int)
	for {
		v, ok := q.Pop()
		if !ok {
			break
		}
		if seen[v] {
			t.Fatalf("duplicate item %d", v)
		}
		seen[v] = true
		// items from one producer must stay in that producer's order
		owner := v / perProducer
		if prev, ok := lastPerProducer[owner]; ok && v <= prev {
			t.Fatalf("producer %d order violated: %d after %d", owner, v, prev)
		}
		lastPerProducer[owner] = v
	}
	if len(seen) != producers*perProducer {
		t.Fatalf("expected %d items, got %d", producers*perProducer, len(seen))
	}
}
