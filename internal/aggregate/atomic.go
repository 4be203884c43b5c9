package aggregate

import "sync/atomic"

// atomicInt64 wraps atomic.Int64 with a monotonic-max store used for
// last-activity tracking under out-of-order delivery.
type atomicInt64 struct {
	v atomic.Int64
}

func (a *atomicInt64) Add(delta int64) { a.v.Add(delta) }

func (a *atomicInt64) Load() int64 { return a.v.Load() }

// StoreMax sets the value to x only if x is greater than the current
// value. CAS loop keeps the maximum under concurrent stores.
func (a *atomicInt64) StoreMax(x int64) {
	for {
		cur := a.v.Load()
		if x <= cur {
			return
		}
		if a.v.CompareAndSwap(cur, x) {
			return
		}
	}
}
