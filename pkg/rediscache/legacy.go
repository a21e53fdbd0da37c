package rediscache

import (
	"context"
	"sync"

	"github.com/DeBrosOfficial/rediscache/pkg/contracts"
)

// Locator returns the process-wide Cache. It is installed by the host's service wiring.
type Locator func() (*Cache, error)

var (
	locatorMu sync.RWMutex
	locator   Locator
)

// SetLocator installs the function GetClient uses to find the process-wide
// Cache. Passing nil uninstalls it.
func SetLocator(l Locator) {
	locatorMu.Lock()
	locator = l
	locatorMu.Unlock()
}

// Default returns the process-wide Cache from the installed locator.
func Default() (*Cache, error) {
	locatorMu.RLock()
	l := locator
	locatorMu.RUnlock()

	if l == nil {
		return nil, newAcquireError(KindCapabilityUnavailable, "", "no cache service registered", nil)
	}
	return l()
}

// GetClient acquires a connection for group from the process-wide Cache.
//
// Deprecated: inject a *Cache and call GetConnection instead.
func GetClient(ctx context.Context, group string) (contracts.CacheHandle, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}
	return c.GetConnection(ctx, group, false)
}
