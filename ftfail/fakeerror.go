//go:build fulltext2_fakeerror

// This file holds a one-shot fault table keyed by point name: Arm stores an
// error for a point and Inject returns and clears it. No code in this
// module calls Inject, so arming a point has no effect on any operation.
// It only compiles into fulltext2_fakeerror-tagged builds.
package ftfail

import "sync"

var (
	faultMu  sync.Mutex
	faultSet = map[string]error{}
)

// Arm schedules point to fail with err the next time Inject(point) is
// called. Passing a nil err disarms it.
func Arm(point string, err error) {
	faultMu.Lock()
	defer faultMu.Unlock()
	if err == nil {
		delete(faultSet, point)
		return
	}
	faultSet[point] = err
}

// Inject returns the armed error for point, if any, disarming it (each
// armed fault fires exactly once, matching the original's one-shot
// injection counters).
func Inject(point string) error {
	faultMu.Lock()
	defer faultMu.Unlock()
	err, ok := faultSet[point]
	if !ok {
		return nil
	}
	delete(faultSet, point)
	return err
}
