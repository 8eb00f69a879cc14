//go:build !unix

package preflight

func freeBytes(string) (uint64, error) { return 0, errUnsupported }

func openFileLimit() (uint64, error) { return 0, errUnsupported }
