package stats

import (
	"math"
	"sync/atomic"
)

func storeInt(addr *int64, v int64) { atomic.StoreInt64(addr, v) }
func loadInt(addr *int64) int64     { return atomic.LoadInt64(addr) }

// storeFloat/loadFloat reinterpret an int64 field as a float64's bit
// pattern, giving lock-free float gauges without a dedicated atomic
// float type (the standard library has none).
func storeFloat(addr *int64, v float64) { atomic.StoreInt64(addr, int64(math.Float64bits(v))) }
func loadFloat(addr *int64) float64     { return math.Float64frombits(uint64(atomic.LoadInt64(addr))) }
