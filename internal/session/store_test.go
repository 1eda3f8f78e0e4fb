package session

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestStoreLifecycle(t *testing.T) {
	st := NewStore(smallChunks(), newStubs().factory)
	id, err := st.Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if st.Len() != 1 {
		t.Errorf("len = %d, want 1", st.Len())
	}

	err = st.With(id, func(s *Session) error {
		return s.Upload("a.txt", []byte("A\nB"))
	})
	if err != nil {
		t.Fatalf("With: %v", err)
	}
	_ = st.With(id, func(s *Session) error {
		if s.State() != ChunksReady {
			t.Errorf("state = %v, want chunks_ready", s.State())
		}
		return nil
	})

	if err := st.Delete(id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := st.With(id, func(*Session) error { return nil }); !errors.Is(err, ErrNotFound) {
		t.Errorf("With after delete: %v", err)
	}
	if err := st.Delete(id); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete: %v", err)
	}
}

func TestStoreSerializesSessionAccess(t *testing.T) {
	st := NewStore(smallChunks(), newStubs().factory)
	id, err := st.Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	_ = st.With(id, func(s *Session) error { return s.Upload("a.txt", []byte("A\nB\nC")) })

	var (
		wg     sync.WaitGroup
		active int
		mu     sync.Mutex
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := st.With(id, func(s *Session) error {
				mu.Lock()
				active++
				if active > 1 {
					t.Error("two requests inside one session")
				}
				mu.Unlock()

				_, err := s.Query(context.Background(), "B", 1)

				mu.Lock()
				active--
				mu.Unlock()
				return err
			})
			if err != nil {
				t.Errorf("With: %v", err)
			}
		}()
	}
	wg.Wait()
}
