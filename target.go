package ffsys

import "strings"

// Target is a compilation target triple such as "x86_64-pc-windows-msvc"
// or "aarch64-unknown-linux-gnu".
type Target string

// Arch returns the first triple component.
func (t Target) Arch() string {
	arch, _, _ := strings.Cut(string(t), "-")
	return arch
}

// IsWindows reports whether the target is a Windows triple.
func (t Target) IsWindows() bool {
	return strings.Contains(string(t), "windows")
}

// IsMSVC reports whether the target uses the MSVC toolchain.
func (t Target) IsMSVC() bool {
	return t.IsWindows() && strings.Contains(string(t), "-msvc")
}

// IsDarwin reports whether the target is an Apple platform.
func (t Target) IsDarwin() bool {
	return strings.Contains(string(t), "darwin") || strings.Contains(string(t), "apple")
}

// IsLinux reports whether the target is a Linux triple.
func (t Target) IsLinux() bool {
	return strings.Contains(string(t), "linux")
}

// ExeSuffix returns ".exe" for Windows targets.
func (t Target) ExeSuffix() string {
	if t.IsWindows() {
		return ".exe"
	}
	return ""
}

func (t Target) String() string {
	return string(t)
}

// tripleFor builds a target triple from an architecture and an OS name
// as reported by uname or the Go runtime.
func tripleFor(arch, osName string) Target {
	switch arch {
	case "amd64":
		arch = "x86_64"
	case "arm64":
		arch = "aarch64"
	case "386":
		arch = "i686"
	}

	switch strings.ToLower(osName) {
	case "linux":
		return Target(arch + "-unknown-linux-gnu")
	case "darwin":
		return Target(arch + "-apple-darwin")
	case "windows":
		return Target(arch + "-pc-windows-msvc")
	case "freebsd":
		return Target(arch + "-unknown-freebsd")
	default:
		return Target(arch + "-unknown-" + strings.ToLower(osName))
	}
}
