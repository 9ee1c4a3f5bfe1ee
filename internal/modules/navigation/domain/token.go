package domain

import (
	"context"
	"sync"
)

// Token identifies one navigation request. It goes stale as soon as a newer
// request is issued or the issuer shuts down; work started on its behalf
// must check Stale before touching shared state.
type Token struct {
	ctx        context.Context
	cancel     context.CancelFunc
	generation uint64
}

func (t *Token) Context() context.Context { return t.ctx }

func (t *Token) Generation() uint64 { return t.generation }

func (t *Token) Stale() bool { return t.ctx.Err() != nil }

// Issuer hands out tokens; issuing one cancels its predecessor.
type Issuer struct {
	mu         sync.Mutex
	parent     context.Context
	generation uint64
	current    *Token
}

func NewIssuer(parent context.Context) *Issuer {
	return &Issuer{parent: parent}
}

func (i *Issuer) Issue() *Token {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.current != nil {
		i.current.cancel()
	}
	i.generation++
	ctx, cancel := context.WithCancel(i.parent)
	i.current = &Token{ctx: ctx, cancel: cancel, generation: i.generation}
	return i.current
}

func (i *Issuer) Generation() uint64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.generation
}

// Cancel invalidates the current token without issuing a new one.
func (i *Issuer) Cancel() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.current != nil {
		i.current.cancel()
	}
}
