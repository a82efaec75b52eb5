package storefront

import (
	"context"
	"sync"
)

// clientLocks はクライアントIDごとの排他ロック。
// 同一クライアントの状態（セッション・カート）を変更するリクエストを直列化する。
// 参照がなくなったエントリは解放時に削除する。
type clientLocks struct {
	mu    sync.Mutex
	locks map[string]*clientLock
}

type clientLock struct {
	sem  chan struct{}
	refs int
}

func newClientLocks() *clientLocks {
	return &clientLocks{locks: make(map[string]*clientLock)}
}

// acquire はclientIDのロックを取得し、解放関数を返す。
// ctxがキャンセルされた場合は待機を打ち切ってエラーを返す。
func (l *clientLocks) acquire(ctx context.Context, clientID string) (func(), error) {
	l.mu.Lock()
	cl, ok := l.locks[clientID]
	if !ok {
		cl = &clientLock{sem: make(chan struct{}, 1)}
		l.locks[clientID] = cl
	}
	cl.refs++
	l.mu.Unlock()

	select {
	case cl.sem <- struct{}{}:
	case <-ctx.Done():
		l.unref(clientID, cl)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-cl.sem
			l.unref(clientID, cl)
		})
	}, nil
}

func (l *clientLocks) unref(clientID string, cl *clientLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cl.refs--
	if cl.refs == 0 {
		delete(l.locks, clientID)
	}
}

// len は保持しているエントリ数を返す。
func (l *clientLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
