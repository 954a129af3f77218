package ffsys

import "strings"

// ConfigureOptions describes the platform side of a configure invocation.
type ConfigureOptions struct {
	Target Target
	Host   Target
	// Prefix is the install directory handed to --prefix.
	Prefix string
	Debug  bool
	Flags  []FeatureFlag
}

// ConfigureArgs assembles the full configure argument list: platform
// switches, install prefix, cross prefix, debug/stripping, static linkage,
// then the feature switches from [Switches].
func ConfigureArgs(opts ConfigureOptions, fs FeatureSet) []string {
	var args []string

	if opts.Target.IsWindows() {
		if opts.Target.IsMSVC() {
			args = append(args, "--toolchain=msvc")
		}
		if opts.Target.Arch() == "x86_64" {
			args = append(args, "--target-os=win64", "--arch=x86_64")
		}
		args = append(args, "--prefix="+windowsPrefix(opts.Prefix))
	} else {
		args = append(args, "--prefix="+opts.Prefix)
	}

	if opts.Host != "" && opts.Target != "" && opts.Target != opts.Host {
		args = append(args, "--cross-prefix="+string(opts.Target)+"-")
	}

	if opts.Debug {
		args = append(args, "--enable-debug", "--disable-stripping")
	} else {
		args = append(args, "--disable-debug", "--enable-stripping")
	}

	args = append(args, "--enable-static", "--disable-shared", "--enable-pic")

	flags := opts.Flags
	if flags == nil {
		flags = DefaultFlags()
	}
	return append(args, Switches(flags, fs)...)
}

// windowsPrefix rewrites a Windows path into the form the MSYS shell running
// configure expects: drive colon dropped, forward slashes, spaces and quotes
// escaped, rooted at "/".
func windowsPrefix(p string) string {
	r := strings.NewReplacer(
		":", "",
		`\`, "/",
		" ", `\ `,
		`"`, `\"`,
	)
	return "/" + r.Replace(p)
}
