package testutil

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"

	"webinar-certs/internal/certificate"
)

// CountingRenderer writes a small text file at the real certificate path and
// counts calls per name.
type CountingRenderer struct {
	mu    sync.Mutex
	calls map[string]int
}

func NewCountingRenderer() *CountingRenderer {
	return &CountingRenderer{calls: map[string]int{}}
}

func (r *CountingRenderer) Render(_ context.Context, name, dates string, year int, dir string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[name]++

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	path := certificate.Path(dir, name, dates, year)
	content := fmt.Sprintf("%s|%s|%s", name, dates, strconv.Itoa(year))
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return "", err
	}
	return path, nil
}

// Calls returns how many times name was rendered
func (r *CountingRenderer) Calls(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[name]
}

// Total returns the number of Render calls
func (r *CountingRenderer) Total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		n += c
	}
	return n
}
