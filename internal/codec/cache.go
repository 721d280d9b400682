package codec

import (
	"strconv"

	"github.com/VictoriaMetrics/fastcache"

	"github.com/rcliao/sngram/internal/pattern"
)

// ItemCache memoizes element codes of one codec. Patterns share most of
// their elements, so building a code item by item with Append avoids
// encoding the same element over and over. Safe for concurrent use.
type ItemCache struct {
	codec Codec
	cache *fastcache.Cache
}

// NewItemCache returns a cache holding about maxBytes of codes.
func NewItemCache(c Codec, maxBytes int) *ItemCache {
	return &ItemCache{codec: c, cache: fastcache.New(maxBytes)}
}

func (c *ItemCache) Codec() Codec { return c.codec }

func cacheKey(dst []byte, e pattern.Element) []byte {
	dst = append(dst, byte(e.Kind))
	switch e.Kind {
	case pattern.KindFeature:
		dst = strconv.AppendQuote(dst, e.Level)
		dst = append(dst, e.Form...)
	case pattern.KindSpecial:
		dst = append(dst, byte(e.Role))
		dst = append(dst, e.Form...)
	default:
		dst = append(dst, e.Token.String()...)
	}
	return dst
}

// EncodeItem is the codec's EncodeItem, served from the cache when possible.
func (c *ItemCache) EncodeItem(e pattern.Element) ([]byte, error) {
	key := cacheKey(nil, e)
	if v, ok := c.cache.HasGet(nil, key); ok {
		return v, nil
	}
	v, err := c.codec.EncodeItem(e)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, v)
	return v, nil
}

// Encode builds the code of p by appending cached item codes. The result
// equals the codec's Encode.
func (c *ItemCache) Encode(p *pattern.SNGram) ([]byte, error) {
	var out []byte
	for _, e := range p.Elements() {
		item, err := c.EncodeItem(e)
		if err != nil {
			return nil, err
		}
		if out, err = c.codec.Append(out, item); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Stats reports the number of cached entries and the cache size in bytes.
func (c *ItemCache) Stats() (entries, bytes uint64) {
	var s fastcache.Stats
	c.cache.UpdateStats(&s)
	return s.EntriesCount, s.BytesSize
}
