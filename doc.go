// Package ffsys builds FFmpeg for cgo consumers and describes what the
// resulting installation offers.
//
// An orchestration run obtains an FFmpeg installation, learns which
// version- and macro-conditional APIs its headers expose, resolves the
// libraries the final link needs and generates a cgo binding file.
// Everything is strictly sequential; only the upstream make runs in
// parallel. The first failing stage aborts the run with a *[StageError].
//
// # API Model
//
// ffsys exposes one entry point and the stages it is built from:
//   - [Run] performs the whole orchestration from [Options]
//   - [Switches] and [ConfigureArgs] map a [FeatureSet] onto configure
//   - [Driver] runs configure, make and make install
//   - [ProbeWith] synthesizes, compiles and runs the availability probe
//   - [ParseExtraLibs] reads the upstream link record
//   - [EmitBindings] writes the cgo binding file
//
// The [FeatureSet] is always passed in. Nothing inside the package reads
// feature selections from the environment; the CLI assembles them from
// flags, the config file and FFSYS_FEATURE_<NAME> variables.
//
// # Quick Run
//
//	report, err := ffsys.Run(ctx, ffsys.Options{
//	    Features: ffsys.NewFeatureSet("build", "avcodec", "avformat", "static"),
//	    OutDir:   "out",
//	})
//	if err != nil {
//	    var se *ffsys.StageError
//	    if errors.As(err, &se) {
//	        log.Fatalf("%s: %s", se.Stage, se.Reason())
//	    }
//	    log.Fatal(err)
//	}
//	fmt.Println(report) // human-readable summary
//
// # Probing Only
//
// Probe an existing installation with custom catalogs:
//
//	res, err := ffsys.ProbeWith(ctx, []string{"/usr/include"}, fs,
//	    ffsys.WithProbes(ffsys.DefaultProbes()...),
//	    ffsys.WithVersionChecks(ffsys.VersionCheckSpec{
//	        Library: "avformat", MajorBegin: 58, MajorEnd: 61, MinorBegin: 0, MinorEnd: 100,
//	    }),
//	)
//
// # Outputs
//
// Facts are rendered as a directive stream, one per line:
//
//	cfg:ff_api_pkt_pts
//	meta:ff_api_pkt_pts=true
//	link-search:native=/out/dist/lib
//	link-lib:static=avcodec
//
// cfg facts double as Go build tags, so dependent code can gate itself with
// //go:build ff_api_pkt_pts.
package ffsys
