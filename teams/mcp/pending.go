package mcp

import (
	"sync"
	"time"
)

// PendingAuth tracks one device login started on behalf of a tool call.
type PendingAuth struct {
	UUID      string
	Alias     string
	TenantID  string
	Namespace string
	Started   time.Time

	once sync.Once
	err  error
	done chan struct{}
}

func NewPendingAuth(uuid, namespace, alias, tenantID string) *PendingAuth {
	if namespace == "" {
		namespace = "default"
	}
	return &PendingAuth{UUID: uuid, Namespace: namespace, Alias: alias, TenantID: tenantID, Started: time.Now(), done: make(chan struct{})}
}

// Done is closed once the login completes or the pending entry is cleared.
func (p *PendingAuth) Done() <-chan struct{} { return p.done }

// Err returns the login outcome once Done is closed.
func (p *PendingAuth) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

func (p *PendingAuth) finish(err error) {
	p.once.Do(func() {
		p.err = err
		close(p.done)
	})
}

type PendingAuths struct {
	mu   sync.RWMutex
	byID map[string]*PendingAuth
	byNS map[string]map[string]*PendingAuth // ns -> uuid -> pending
}

func NewPendingAuths() *PendingAuths {
	return &PendingAuths{byID: make(map[string]*PendingAuth), byNS: make(map[string]map[string]*PendingAuth)}
}

func (p *PendingAuths) Put(x *PendingAuth) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.put(x)
}

// FindOrPut returns the pending login for namespace and alias, storing the one built by create
// when there is none. created reports whether create was called.
func (p *PendingAuths) FindOrPut(ns, alias string, create func() *PendingAuth) (x *PendingAuth, created bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if x, ok := p.find(ns, alias); ok {
		return x, false
	}
	x = create()
	p.put(x)
	return x, true
}

func (p *PendingAuths) put(x *PendingAuth) {
	if x.done == nil {
		x.done = make(chan struct{})
	}
	p.byID[x.UUID] = x
	if x.Namespace == "" {
		x.Namespace = "default"
	}
	m, ok := p.byNS[x.Namespace]
	if !ok {
		m = map[string]*PendingAuth{}
		p.byNS[x.Namespace] = m
	}
	m[x.UUID] = x
}

func (p *PendingAuths) Get(uuid string) (*PendingAuth, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	x, ok := p.byID[uuid]
	return x, ok
}

// Find returns the pending login for namespace and alias, if any.
func (p *PendingAuths) Find(ns, alias string) (*PendingAuth, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.find(ns, alias)
}

func (p *PendingAuths) find(ns, alias string) (*PendingAuth, bool) {
	for _, x := range p.byNS[ns] {
		if x.Alias == alias {
			return x, true
		}
	}
	return nil, false
}

// Complete removes uuid and releases its waiters with err.
func (p *PendingAuths) Complete(uuid string, err error) {
	p.mu.Lock()
	x, ok := p.byID[uuid]
	if ok {
		delete(p.byID, uuid)
		if m, ok2 := p.byNS[x.Namespace]; ok2 {
			delete(m, uuid)
			if len(m) == 0 {
				delete(p.byNS, x.Namespace)
			}
		}
	}
	p.mu.Unlock()
	if ok {
		x.finish(err)
	}
}

// ListNamespace returns a snapshot of pending auths for a namespace.
func (p *PendingAuths) ListNamespace(ns string) []*PendingAuth {
	p.mu.RLock()
	defer p.mu.RUnlock()
	m := p.byNS[ns]
	out := make([]*PendingAuth, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}

// ClearNamespace removes all pending auths for a namespace and returns cleared UUIDs.
func (p *PendingAuths) ClearNamespace(ns string) []string {
	p.mu.Lock()
	ids := make([]string, 0)
	var cleared []*PendingAuth
	if m, ok := p.byNS[ns]; ok {
		for id, x := range m {
			delete(p.byID, id)
			ids = append(ids, id)
			cleared = append(cleared, x)
		}
		delete(p.byNS, ns)
	}
	p.mu.Unlock()
	for _, x := range cleared {
		x.finish(errLoginCancelled)
	}
	return ids
}
