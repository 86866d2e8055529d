package app

import (
	"context"
	"sync"
)

// RequestLimiter borne le nombre de requêtes portail en vol, tous workers
// confondus. Le plafond est ajustable à chaud via SetLimit (hook settings).
//
// Acquire respecte le contexte; Release réveille un waiter à la fois,
// SetLimit les réveille tous pour re-tester le nouveau plafond.
type RequestLimiter struct {
	mu       sync.Mutex
	limit    int
	inFlight int
	waiters  []chan struct{}
}

func NewRequestLimiter(limit int) *RequestLimiter {
	if limit <= 0 {
		limit = 1
	}
	return &RequestLimiter{limit: limit}
}

func (l *RequestLimiter) Limit() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.limit
}

func (l *RequestLimiter) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inFlight
}

func (l *RequestLimiter) SetLimit(limit int) {
	if limit <= 0 {
		limit = 1
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.limit == limit {
		return
	}
	l.limit = limit
	l.wakeAllLocked()
}

func (l *RequestLimiter) Acquire(ctx context.Context) error {
	for {
		l.mu.Lock()
		if l.inFlight < l.limit {
			l.inFlight++
			l.mu.Unlock()
			return nil
		}
		ch := make(chan struct{}, 1)
		l.waiters = append(l.waiters, ch)
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			l.drop(ch)
			return ctx.Err()
		case <-ch:
		}
	}
}

func (l *RequestLimiter) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.inFlight > 0 {
		l.inFlight--
	}
	if len(l.waiters) > 0 {
		ch := l.waiters[0]
		l.waiters = l.waiters[1:]
		ch <- struct{}{}
	}
}

func (l *RequestLimiter) wakeAllLocked() {
	for _, ch := range l.waiters {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	l.waiters = nil
}

// drop retire un waiter annulé. Si Release l'avait déjà réveillé (course
// annulation/réveil), le réveil est transmis au waiter suivant pour ne pas
// perdre de permis.
func (l *RequestLimiter) drop(ch chan struct{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, w := range l.waiters {
		if w == ch {
			l.waiters = append(l.waiters[:i], l.waiters[i+1:]...)
			return
		}
	}
	select {
	case <-ch:
		if len(l.waiters) > 0 {
			next := l.waiters[0]
			l.waiters = l.waiters[1:]
			next <- struct{}{}
		}
	default:
	}
}
