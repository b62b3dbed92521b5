package widget

import (
	"errors"
	"sync"
)

// HeadlessNode is the native object created by the headless backend.
type HeadlessNode struct {
	Ref      Ref
	Kind     Kind
	Parent   *HeadlessNode
	Props    map[Prop]any
	Released bool
}

// Headless is an in-memory Backend. It keeps enough state to inspect what a
// real engine would have been asked to do.
type Headless struct {
	mu       sync.Mutex
	nodes    map[Ref]*HeadlessNode
	released []Ref

	// FailRealize, when set, makes Realize fail for matching kinds.
	FailRealize func(kind Kind) bool

	// OnRelease is called for every released node, before it is marked.
	OnRelease func(n *HeadlessNode)
}

// NewHeadless returns an empty headless backend.
func NewHeadless() *Headless {
	return &Headless{nodes: make(map[Ref]*HeadlessNode)}
}

var errRealizeRefused = errors.New("realize refused")

func (b *Headless) Realize(ref Ref, kind Kind, parent any, cfg Config) (any, error) {
	if b.FailRealize != nil && b.FailRealize(kind) {
		return nil, errRealizeRefused
	}
	n := &HeadlessNode{
		Ref:  ref,
		Kind: kind,
		Props: map[Prop]any{
			PropText:     cfg.Text,
			PropSize:     cfg.Size,
			PropPosition: cfg.Position,
		},
	}
	if p, ok := parent.(*HeadlessNode); ok {
		n.Parent = p
	}

	b.mu.Lock()
	b.nodes[ref] = n
	b.mu.Unlock()
	return n, nil
}

func (b *Headless) Apply(native any, prop Prop, value any) error {
	n, ok := native.(*HeadlessNode)
	if !ok {
		return errors.New("not a headless node")
	}
	if n.Released {
		return errors.New("apply on released node")
	}
	b.mu.Lock()
	n.Props[prop] = value
	b.mu.Unlock()
	return nil
}

func (b *Headless) Release(native any) {
	n, ok := native.(*HeadlessNode)
	if !ok {
		return
	}
	if b.OnRelease != nil {
		b.OnRelease(n)
	}
	b.mu.Lock()
	n.Released = true
	delete(b.nodes, n.Ref)
	b.released = append(b.released, n.Ref)
	b.mu.Unlock()
}

// Live returns the number of unreleased native objects.
func (b *Headless) Live() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.nodes)
}

// Released returns the refs released so far, in order.
func (b *Headless) Released() []Ref {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Ref, len(b.released))
	copy(out, b.released)
	return out
}

// Node returns the native node for ref, if it is still realized.
func (b *Headless) Node(ref Ref) (*HeadlessNode, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, ok := b.nodes[ref]
	return n, ok
}
