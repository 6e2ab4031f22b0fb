// Package loader turns the textual program format, pairs of hex digits in
// load order, into a byte image.
package loader

import (
	"encoding/base64"
	"encoding/hex"
	"strings"
	"sync"
	"unicode"

	hclog "github.com/hashicorp/go-hclog"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
)

var ErrInvalidProgram = errors.New("invalid program")

type LoaderCache struct {
	mu sync.RWMutex

	cache *lru.ARCCache
}

func NewLoaderCache() *LoaderCache {
	cache, err := lru.NewARC(100)
	if err != nil {
		panic(err)
	}

	return &LoaderCache{cache: cache}
}

func (l *LoaderCache) Lookup(key string) ([]byte, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	val, ok := l.cache.Get(key)
	if !ok {
		return nil, false
	}

	return val.([]byte), true
}

func (l *LoaderCache) Set(key string, image []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.cache.Add(key, image)
}

func NewLoader(cache *LoaderCache) *Loader {
	return &Loader{
		L:     hclog.L(),
		cache: cache,
	}
}

type Loader struct {
	L     hclog.Logger
	cache *LoaderCache
}

// Normalize strips every whitespace character from src.
func Normalize(src string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, src)
}

// Parse decodes a program. Whitespace is ignored; anything else that is not
// a hex digit, an odd digit count or an empty program is rejected.
func Parse(src string) ([]byte, error) {
	text := Normalize(src)

	if text == "" {
		return nil, errors.Wrap(ErrInvalidProgram, "empty program")
	}

	if len(text)%2 != 0 {
		return nil, errors.Wrapf(ErrInvalidProgram, "odd number of hex digits (%d)", len(text))
	}

	image, err := hex.DecodeString(text)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidProgram, "%s", err)
	}

	return image, nil
}

// Load parses src, reusing an earlier result for the same program text. The
// returned image is the caller's to modify.
func (l *Loader) Load(src string) ([]byte, error) {
	text := Normalize(src)

	var cacheKey string

	if l.cache != nil {
		sum := blake2b.Sum256([]byte(strings.ToUpper(text)))
		cacheKey = base64.URLEncoding.EncodeToString(sum[:])

		if image, ok := l.cache.Lookup(cacheKey); ok {
			l.L.Trace("cached-program", "key", cacheKey)
			return append([]byte(nil), image...), nil
		}
	}

	image, err := Parse(text)
	if err != nil {
		return nil, err
	}

	if l.cache != nil {
		l.L.Trace("caching-program", "key", cacheKey, "size", len(image))
		l.cache.Set(cacheKey, append([]byte(nil), image...))
	}

	return image, nil
}
