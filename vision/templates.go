package vision

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"sync"
)

// TemplateSet loads and caches PNG templates by path. Loading the same path
// twice returns the cached decode.
type TemplateSet struct {
	mu    sync.Mutex
	cache map[string]image.Image
}

func NewTemplateSet() *TemplateSet {
	return &TemplateSet{cache: make(map[string]image.Image)}
}

// Load decodes the PNG template at path, caching the result.
func (t *TemplateSet) Load(path string) (image.Image, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if img, ok := t.cache[path]; ok {
		return img, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open template %s: %v", path, err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode template %s: %v", path, err)
	}
	t.cache[path] = img
	return img, nil
}

// LoadFirst returns the first template in paths that exists and decodes.
// Missing files are skipped; an error is returned only when none load.
func (t *TemplateSet) LoadFirst(paths ...string) (image.Image, error) {
	var lastErr error
	for _, p := range paths {
		if p == "" {
			continue
		}
		img, err := t.Load(p)
		if err == nil {
			return img, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no template paths given")
	}
	return nil, lastErr
}
