//go:build !linux

package ffsys

import "runtime"

// HostTarget returns the triple of the machine running the orchestrator.
func HostTarget() Target {
	return tripleFor(runtime.GOARCH, runtime.GOOS)
}

// HostParallelism returns the number of logical cores.
func HostParallelism() int {
	return runtime.NumCPU()
}
