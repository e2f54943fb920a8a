package translator

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// Registry keeps generated scripts addressable by id so a script can be
// redeployed without re-translating. Backed by an LRU cache: old scripts
// age out instead of accumulating.
type Registry struct {
	cache *lru.Cache[string, *Script]
}

func NewRegistry(size int) (*Registry, error) {
	if size <= 0 {
		size = 256
	}
	cache, err := lru.New[string, *Script](size)
	if err != nil {
		return nil, err
	}
	return &Registry{cache: cache}, nil
}

func (r *Registry) Store(s *Script) {
	r.cache.Add(s.ID, s)
}

func (r *Registry) Get(id string) (*Script, bool) {
	return r.cache.Get(id)
}

func (r *Registry) Len() int {
	return r.cache.Len()
}
