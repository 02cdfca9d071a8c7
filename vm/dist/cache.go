package dist

import (
	"crypto/sha256"
	"fmt"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/chazu/nex/pkg/bytecode"
)

// DefaultCacheSize bounds an ImageCache created with a non-positive size.
const DefaultCacheSize = 64

// ImageCache loads object files once per distinct content. Images are
// keyed by the SHA-256 of the object bytes, so the same file registered
// under several module names, or received in several envelopes, decodes
// once. Every load uses the options the cache was created with.
//
// An ImageCache is not safe for concurrent use.
type ImageCache struct {
	opts   []bytecode.Option
	images *simplelru.LRU[[32]byte, *bytecode.Image]
	hits   int
}

// NewImageCache creates a cache holding at most size images.
func NewImageCache(size int, opts ...bytecode.Option) *ImageCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	images, err := simplelru.NewLRU[[32]byte, *bytecode.Image](size, nil)
	if err != nil {
		panic(err)
	}
	return &ImageCache{opts: opts, images: images}
}

// Load returns the image for object, decoding it on a miss. Format errors
// are not cached.
func (c *ImageCache) Load(object []byte) (*bytecode.Image, error) {
	digest := sha256.Sum256(object)
	if img, ok := c.images.Get(digest); ok {
		c.hits++
		return img, nil
	}
	img, err := bytecode.Load(object, c.opts...)
	if err != nil {
		return nil, err
	}
	c.images.Add(digest, img)
	return img, nil
}

// Open verifies env and returns its image, reusing a cached decode when the
// envelope's digest is already known.
func (c *ImageCache) Open(env *ImageEnvelope) (*bytecode.Image, error) {
	if env.Version != EnvelopeVersion {
		return nil, fmt.Errorf("%w: %d", ErrEnvelopeVersion, env.Version)
	}
	if img, ok := c.images.Get(env.Digest); ok && img.SourceHash == env.Hash && sha256.Sum256(env.Object) == env.Digest {
		c.hits++
		return img, nil
	}
	img, err := env.Open(c.opts...)
	if err != nil {
		return nil, err
	}
	c.images.Add(env.Digest, img)
	return img, nil
}

// Len reports the number of cached images.
func (c *ImageCache) Len() int { return c.images.Len() }

// Hits reports how many loads were served from the cache.
func (c *ImageCache) Hits() int { return c.hits }
