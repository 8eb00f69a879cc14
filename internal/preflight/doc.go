// Package preflight checks that lexindex can run on this machine with the
// current configuration: roots are readable, the data directory is
// writable with space to spare, and the external OCR tools exist when OCR
// is on. Callers add their own probes for the index and remote backend.
//
//	c := preflight.New(preflight.Options{Roots: roots, DataDir: dir})
//	results := c.RunAll(ctx)
//	if preflight.HasCriticalFailures(results) {
//	    ...
//	}
package preflight
