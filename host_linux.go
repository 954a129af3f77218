//go:build linux

package ffsys

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// HostTarget returns the triple of the machine running the orchestrator.
func HostTarget() Target {
	var uname unix.Utsname
	if err := unix.Uname(&uname); err != nil {
		return tripleFor(runtime.GOARCH, runtime.GOOS)
	}
	return tripleFor(unix.ByteSliceToString(uname.Machine[:]), unix.ByteSliceToString(uname.Sysname[:]))
}

// HostParallelism returns the number of logical cores this process may run on.
// CPU affinity is honoured, so a build in a cpuset-restricted container does
// not oversubscribe.
func HostParallelism() int {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err == nil {
		if n := set.Count(); n > 0 {
			return n
		}
	}
	return runtime.NumCPU()
}
