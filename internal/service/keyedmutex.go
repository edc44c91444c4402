package service

import "sync"

// keyedMutex serializes operations per book id without a global lock.
// Locks are striped over a fixed number of shards so the map of held locks
// never grows with the catalog; two different book ids contend only on a
// shard collision, never on a shared mutex for the whole catalog.
type keyedMutex struct {
	shards [keyedMutexShards]sync.Mutex
}

const keyedMutexShards = 64

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{}
}

// Lock acquires the mutex for the given key and returns its unlock function.
func (k *keyedMutex) Lock(key int64) func() {
	shard := &k.shards[uint64(key)%keyedMutexShards]
	shard.Lock()
	return shard.Unlock
}
