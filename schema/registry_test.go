package schema

import (
	"errors"
	"sync"
	"testing"
)

func TestRegistry_ForVersion(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		version string
		want    string
	}{
		{"2.5", "2.5"},
		{"2.5.1", "2.5"},
		{"2.3", "2.3"},
		{"2.3.1", "2.3"},
		{"2.7", "2.5"},
		{"", "2.5"},
		{"garbage", "2.5"},
	}
	for _, tt := range tests {
		s, err := r.ForVersion(tt.version)
		if err != nil {
			t.Fatalf("ForVersion(%q) error = %v", tt.version, err)
		}
		if s.Version != tt.want {
			t.Errorf("ForVersion(%q).Version = %q; want %q", tt.version, s.Version, tt.want)
		}
	}
}

func TestRegistry_Caches(t *testing.T) {
	calls := 0
	r := NewRegistryWithLoader(func(version string) (*Schema, error) {
		calls++
		return LoadEmbedded(version)
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Get("2.5"); err != nil {
				t.Errorf("Get() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if calls != 1 {
		t.Errorf("loader called %d times; want 1", calls)
	}
}

func TestRegistry_LoadError(t *testing.T) {
	boom := errors.New("boom")
	r := NewRegistryWithLoader(func(string) (*Schema, error) { return nil, boom })
	if _, err := r.Get("2.5"); !errors.Is(err, boom) {
		t.Errorf("Get() error = %v; want wrapping %v", err, boom)
	}
}

func TestRegistry_Put(t *testing.T) {
	r := NewRegistryWithLoader(func(string) (*Schema, error) {
		return nil, errors.New("should not load")
	})
	r.Put(&Schema{Version: "2.5"})
	if s, err := r.Get("2.5"); err != nil || s.Version != "2.5" {
		t.Errorf("Get() = %v, %v", s, err)
	}
}

func TestDefault(t *testing.T) {
	if Default() != Default() {
		t.Error("Default() should return the same registry")
	}
}
