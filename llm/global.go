package llm

import "sync"

var (
	globalCallStore   *CallStore
	globalCallStoreMu sync.RWMutex
	callStoreInitOnce sync.Once
)

// InitGlobalCallStore initializes the global call store. This should be
// called once during application startup, after the archive store exists
// when NATS is configured. It's safe to call multiple times - subsequent
// calls keep the first store and ignore their arguments.
func InitGlobalCallStore(archiver Archiver, opts ...CallStoreOption) *CallStore {
	callStoreInitOnce.Do(func() {
		store := NewCallStore(archiver, opts...)
		globalCallStoreMu.Lock()
		globalCallStore = store
		globalCallStoreMu.Unlock()
	})
	return GlobalCallStore()
}

// GlobalCallStore returns the global call store. Returns nil until
// InitGlobalCallStore has run; a nil store disables call recording.
func GlobalCallStore() *CallStore {
	globalCallStoreMu.RLock()
	defer globalCallStoreMu.RUnlock()
	return globalCallStore
}

// ResetGlobalCallStore resets the global call store for testing purposes.
// This is NOT thread-safe and should only be used in tests.
func ResetGlobalCallStore() {
	globalCallStoreMu.Lock()
	defer globalCallStoreMu.Unlock()
	callStoreInitOnce = sync.Once{}
	globalCallStore = nil
}
