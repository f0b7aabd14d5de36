package httpserver

import (
	"bytes"
	"container/list"
	"image"
	"image/jpeg"
	"net/http"
	"os"
	"strconv"
	"sync"

	// decoders
	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"vortex/internal/logger"
)

const thumbCacheEntries = 512

func (s *Server) serveThumb(w http.ResponseWriter, r *http.Request, p string, st os.FileInfo) {
	etag := ETag(p, st)
	if r.Header.Get("If-None-Match") == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}

	b, err := s.thumbs.get(p, etag)
	if err != nil {
		logger.Debug("No thumbnail for %s: %v", st.Name(), err)
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	h := w.Header()
	h.Set("Content-Type", "image/jpeg")
	h.Set("Content-Length", strconv.Itoa(len(b)))
	h.Set("ETag", etag)
	h.Set("Cache-Control", "public, max-age=3600")
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(b)
}

// thumbCache keeps recently generated thumbnails in memory, keyed by the
// source's ETag so a modified image is regenerated.
type thumbCache struct {
	maxDim int
	limit  int

	mu    sync.Mutex
	order *list.List
	items map[string]*list.Element
}

type thumbEntry struct {
	key  string
	data []byte
}

func newThumbCache(limit, maxDim int) *thumbCache {
	return &thumbCache{
		maxDim: maxDim,
		limit:  limit,
		order:  list.New(),
		items:  make(map[string]*list.Element),
	}
}

func (c *thumbCache) get(p, etag string) ([]byte, error) {
	key := p + "\x00" + etag
	c.mu.Lock()
	if el, ok := c.items[key]; ok {
		c.order.MoveToFront(el)
		b := el.Value.(*thumbEntry).data
		c.mu.Unlock()
		return b, nil
	}
	c.mu.Unlock()

	b, err := makeThumb(p, c.maxDim)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		return el.Value.(*thumbEntry).data, nil
	}
	c.items[key] = c.order.PushFront(&thumbEntry{key: key, data: b})
	for c.order.Len() > c.limit {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*thumbEntry).key)
	}
	return b, nil
}

func (c *thumbCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// makeThumb decodes a jpg, png, gif or webp image and re-encodes it as a
// JPEG no larger than max on either side.
func makeThumb(absPath string, max int) ([]byte, error) {
	f, err := os.Open(absPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, os.ErrInvalid
	}
	if max <= 0 {
		max = 256
	}

	nw, nh := fit(w, h, max)
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, dst, &jpeg.Options{Quality: 82}); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// fit scales w x h down, keeping the aspect ratio, until neither side
// exceeds max. Images already small enough are left alone.
func fit(w, h, max int) (int, int) {
	nw, nh := w, h
	switch {
	case w >= h && w > max:
		nw = max
		nh = h * max / w
	case h > w && h > max:
		nh = max
		nw = w * max / h
	}
	return atLeastOne(nw), atLeastOne(nh)
}

func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
