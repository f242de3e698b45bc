// Zvonki Copyright 2026 zvonki.app. All rights reserved.
package atombool

import "sync"

// AtomBool is a bool that is safe for concurrent Set/Get.
type AtomBool struct {
	mutex sync.RWMutex
	flag  bool
}

func (b *AtomBool) Set(value bool) {
	b.mutex.Lock()
	b.flag = value
	b.mutex.Unlock()
}

func (b *AtomBool) Get() bool {
	b.mutex.RLock()
	value := b.flag
	b.mutex.RUnlock()
	return value
}
