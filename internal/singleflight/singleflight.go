// Package singleflight coalesces concurrent calls for the same key into one
// execution. The token source uses it to guarantee a single refresh per
// credential owner at a time.
package singleflight

import "sync"

type call struct {
	wg  sync.WaitGroup
	val any
	err error
}

// Group manages in-flight calls per key.
type Group struct {
	mu sync.Mutex
	m  map[string]*call
}

// New creates an empty Group.
func New() *Group {
	return &Group{m: make(map[string]*call)}
}

// Do executes fn, making sure only one execution is in flight for key at a
// time. Duplicate callers wait for the original and receive the same result.
func (g *Group) Do(key string, fn func() (any, error)) (any, error) {
	g.mu.Lock()
	if c, ok := g.m[key]; ok {
		g.mu.Unlock()
		c.wg.Wait()
		return c.val, c.err
	}
	c := &call{}
	c.wg.Add(1)
	g.m[key] = c
	g.mu.Unlock()

	c.val, c.err = fn()

	g.mu.Lock()
	delete(g.m, key)
	g.mu.Unlock()
	c.wg.Done()

	return c.val, c.err
}
