package disk

import (
	"io"
	"os"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
)

var ErrBadLocation = errors.New("location outside disk geometry")

// Store is the backing medium. ReadBlock of a never written block returns a
// zero filled block.
type Store interface {
	ReadBlock(l Location) ([]byte, error)
	WriteBlock(l Location, data []byte) error
}

// MemStore keeps blocks in a map, like a browser session store would.
type MemStore struct {
	mu        sync.RWMutex
	blockSize int
	blocks    map[Location][]byte
}

func NewMemStore(g Geometry) *MemStore {
	return &MemStore{
		blockSize: g.BlockSize,
		blocks:    make(map[Location][]byte),
	}
}

func (m *MemStore) ReadBlock(l Location) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]byte, m.blockSize)
	copy(out, m.blocks[l])

	return out, nil
}

func (m *MemStore) WriteBlock(l Location, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	buf := make([]byte, m.blockSize)
	copy(buf, data)
	m.blocks[l] = buf

	return nil
}

// FileStore keeps the whole disk in one fixed-size host file so its
// contents survive across runs.
type FileStore struct {
	geo Geometry
	f   *os.File
}

func OpenFileStore(path string, g Geometry) (*FileStore, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "opening disk image %s", path)
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	if stat.Size() < g.Size() {
		err = f.Truncate(g.Size())
		if err != nil {
			f.Close()
			return nil, errors.Wrapf(err, "sizing disk image %s", path)
		}
	}

	return &FileStore{geo: g, f: f}, nil
}

func (s *FileStore) offset(l Location) (int64, error) {
	if !s.geo.Contains(l) {
		return 0, errors.Wrapf(ErrBadLocation, "location=%s", l)
	}

	return int64(s.geo.Index(l)) * int64(s.geo.BlockSize), nil
}

func (s *FileStore) ReadBlock(l Location) ([]byte, error) {
	off, err := s.offset(l)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, s.geo.BlockSize)

	_, err = s.f.ReadAt(buf, off)
	if err != nil && err != io.EOF {
		return nil, errors.Wrapf(err, "reading block %s", l)
	}

	return buf, nil
}

func (s *FileStore) WriteBlock(l Location, data []byte) error {
	off, err := s.offset(l)
	if err != nil {
		return err
	}

	buf := make([]byte, s.geo.BlockSize)
	copy(buf, data)

	_, err = s.f.WriteAt(buf, off)
	if err != nil {
		return errors.Wrapf(err, "writing block %s", l)
	}

	return nil
}

func (s *FileStore) Close() error {
	return s.f.Close()
}

// CachedStore is a write-through ARC cache in front of a slower store.
type CachedStore struct {
	Store

	cache *lru.ARCCache
}

func NewCachedStore(s Store, size int) (*CachedStore, error) {
	cache, err := lru.NewARC(size)
	if err != nil {
		return nil, err
	}

	return &CachedStore{Store: s, cache: cache}, nil
}

func (c *CachedStore) ReadBlock(l Location) ([]byte, error) {
	if val, ok := c.cache.Get(l); ok {
		src := val.([]byte)
		out := make([]byte, len(src))
		copy(out, src)
		return out, nil
	}

	data, err := c.Store.ReadBlock(l)
	if err != nil {
		return nil, err
	}

	keep := make([]byte, len(data))
	copy(keep, data)
	c.cache.Add(l, keep)

	return data, nil
}

func (c *CachedStore) WriteBlock(l Location, data []byte) error {
	err := c.Store.WriteBlock(l, data)
	if err != nil {
		c.cache.Remove(l)
		return err
	}

	keep := make([]byte, len(data))
	copy(keep, data)
	c.cache.Add(l, keep)

	return nil
}
