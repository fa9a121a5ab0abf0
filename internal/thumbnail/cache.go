// Package thumbnail implements Polaris's thumbnail cache (C5): a
// content-addressed, on-disk cache of resized cover images with
// at-most-one-computation-per-key (single-flight) semantics.
package thumbnail

import (
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/image/draw"

	"polaris/pkg/polaris"
)

// key128 is the 128-bit content-address of a thumbnail request.
type key128 struct {
	Lo, Hi uint64
}

func (k key128) String() string {
	return fmt.Sprintf("%016x%016x", k.Hi, k.Lo)
}

// computeKey hashes (canonical real_path, mtime_ns, size_class, pad)
// with md5, so the same inputs hash the same way across process
// restarts (the cache is keyed by inputs only, never by a per-process
// seed).
func computeKey(k polaris.ThumbnailKey) key128 {
	realPath := k.RealPath
	if resolved, err := filepath.EvalSymlinks(realPath); err == nil {
		realPath = resolved
	}
	payload := fmt.Sprintf("%s\x00%d\x00%d\x00%v", realPath, k.MTimeNs, k.SizeClass, k.Pad)
	sum := md5.Sum([]byte(payload))
	return key128{
		Hi: binary.BigEndian.Uint64(sum[0:8]),
		Lo: binary.BigEndian.Uint64(sum[8:16]),
	}
}

type future struct {
	done chan struct{}
	path string
	err  error
}

// Cache produces and serves resized cover images, guaranteeing at most
// one producer per key (invariant 6).
type Cache struct {
	dir string

	mu         sync.Mutex
	inProgress map[key128]*future
}

// New creates a Cache rooted at dir, which must already exist or be
// creatable. The cache is stable across restarts: the key depends only
// on its inputs.
func New(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating thumbnail cache dir: %w", err)
	}
	return &Cache{dir: dir, inProgress: map[key128]*future{}}, nil
}

// Get returns the path to a JPEG thumbnail for key, producing it if
// necessary. Concurrent callers for the same key share one producer.
func (c *Cache) Get(key polaris.ThumbnailKey, source func() (image.Image, error)) (string, error) {
	hashed := computeKey(key)
	cachePath := c.pathFor(hashed)

	if _, err := os.Stat(cachePath); err == nil {
		return cachePath, nil
	}

	c.mu.Lock()
	if f, ok := c.inProgress[hashed]; ok {
		c.mu.Unlock()
		<-f.done
		return f.path, f.err
	}
	if _, err := os.Stat(cachePath); err == nil {
		c.mu.Unlock()
		return cachePath, nil
	}
	f := &future{done: make(chan struct{})}
	c.inProgress[hashed] = f
	c.mu.Unlock()

	// Production happens outside the lock, per 5's "actual resize
	// happens outside the lock".
	path, err := c.produce(cachePath, key, source)
	f.path, f.err = path, err
	close(f.done)

	c.mu.Lock()
	delete(c.inProgress, hashed)
	c.mu.Unlock()

	return path, err
}

func (c *Cache) pathFor(k key128) string {
	name := k.String()
	return filepath.Join(c.dir, name[:2], name[2:]+".jpg")
}

func (c *Cache) produce(cachePath string, key polaris.ThumbnailKey, source func() (image.Image, error)) (string, error) {
	img, err := source()
	if err != nil {
		return "", fmt.Errorf("decoding source image: %w", err)
	}

	resized := resizeFor(img, key.SizeClass, key.Pad)

	if err := os.MkdirAll(filepath.Dir(cachePath), 0755); err != nil {
		return "", fmt.Errorf("creating thumbnail cache subdir: %w", err)
	}

	tmp := cachePath + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("creating thumbnail file: %w", err)
	}
	if err := jpeg.Encode(out, resized, &jpeg.Options{Quality: 80}); err != nil {
		out.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("encoding thumbnail jpeg: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, cachePath); err != nil {
		return "", err
	}
	return cachePath, nil
}

// resizeFor scales img to fit size_class's square using a high-quality
// interpolative scaler, optionally letterbox-padding with black to
// exactly size x size. Native returns img unresized.
func resizeFor(img image.Image, size polaris.SizeClass, pad bool) image.Image {
	dim := size.Dimension()
	if dim == 0 {
		return img
	}

	srcBounds := img.Bounds()
	srcW, srcH := srcBounds.Dx(), srcBounds.Dy()
	if srcW == 0 || srcH == 0 {
		return img
	}

	scale := float64(dim) / float64(srcW)
	if s := float64(dim) / float64(srcH); s < scale {
		scale = s
	}
	dstW := maxInt(1, int(float64(srcW)*scale+0.5))
	dstH := maxInt(1, int(float64(srcH)*scale+0.5))

	scaled := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, srcBounds, draw.Over, nil)

	if !pad {
		return scaled
	}
	if dstW == dim && dstH == dim {
		return scaled
	}

	canvas := image.NewRGBA(image.Rect(0, 0, dim, dim))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	offsetX := (dim - dstW) / 2
	offsetY := (dim - dstH) / 2
	dstRect := image.Rect(offsetX, offsetY, offsetX+dstW, offsetY+dstH)
	draw.Draw(canvas, dstRect, scaled, image.Point{}, draw.Over)
	return canvas
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// DecodeJPEGOrPNG is a small helper for source funcs that read from an
// io.Reader of unknown but supported image format.
func DecodeJPEGOrPNG(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	return img, err
}
