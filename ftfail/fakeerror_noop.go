//go:build !fulltext2_fakeerror

package ftfail

// Inject is a no-op in production builds; fault injection only compiles in
// under the fulltext2_fakeerror build tag.
func Inject(point string) error { return nil }

// Arm is a no-op in production builds.
func Arm(point string, err error) {}
