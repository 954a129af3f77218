package ffsys

// DefaultFlags returns the configure flag catalog.
//
// Licence, component library and program flags are toggles: the upstream
// build is always told explicitly whether to build them. External library
// flags are enable-only because upstream disables them by default.
func DefaultFlags() []FeatureFlag {
	flags := []FeatureFlag{
		// the binary using the libraries must comply with GPL
		{Feature: "build_license_gpl", Category: Toggle, Switch: "gpl"},
		// the binary using the libraries must comply with (L)GPLv3
		{Feature: "build_license_version3", Category: Toggle, Switch: "version3"},
		// the binary using the libraries cannot be redistributed
		{Feature: "build_license_nonfree", Category: Toggle, Switch: "nonfree"},
	}

	for _, lib := range []string{"avcodec", "avdevice", "avfilter", "avformat", "avresample", "postproc", "swresample", "swscale"} {
		flags = append(flags, FeatureFlag{Feature: lib, Category: Toggle, Switch: lib})
	}
	for _, prog := range []string{"ffmpeg", "ffplay", "ffprobe"} {
		flags = append(flags, FeatureFlag{Feature: prog, Category: Toggle, Switch: prog})
	}

	enableOnly := []struct{ feature, sw string }{
		// TLS
		{"build_lib_gnutls", "gnutls"},
		{"build_lib_openssl", "openssl"},
		{"build_lib_schannel", "schannel"},
		{"build_lib_securetransport", "securetransport"},

		// filters
		{"build_lib_fontconfig", "fontconfig"},
		{"build_lib_frei0r", "frei0r"},
		{"build_lib_ladspa", "ladspa"},
		{"build_lib_ass", "libass"},
		{"build_lib_freetype", "libfreetype"},
		{"build_lib_fribidi", "libfribidi"},
		{"build_lib_opencv", "libopencv"},

		// encoders/decoders
		{"build_lib_aacplus", "libaacplus"},
		{"build_lib_celt", "libcelt"},
		{"build_lib_dcadec", "libdcadec"},
		{"build_lib_faac", "libfaac"},
		{"build_lib_fdk_aac", "libfdk-aac"},
		{"build_lib_gsm", "libgsm"},
		{"build_lib_ilbc", "libilbc"},
		{"build_lib_vazaar", "libvazaar"},
		{"build_lib_mp3lame", "libmp3lame"},
		{"build_lib_opencore_amrnb", "libopencore-amrnb"},
		{"build_lib_opencore_amrwb", "libopencore-amrwb"},
		{"build_lib_openh264", "libopenh264"},
		{"build_lib_openh265", "libopenh265"},
		{"build_lib_openjpeg", "libopenjpeg"},
		{"build_lib_opus", "libopus"},
		{"build_lib_schroedinger", "libschroedinger"},
		{"build_lib_shine", "libshine"},
		{"build_lib_snappy", "libsnappy"},
		{"build_lib_speex", "libspeex"},
		{"build_lib_stagefright_h264", "libstagefright-h264"},
		{"build_lib_theora", "libtheora"},
		{"build_lib_twolame", "libtwolame"},
		{"build_lib_utvideo", "libutvideo"},
		{"build_lib_vo_aacenc", "libvo-aacenc"},
		{"build_lib_vo_amrwbenc", "libvo-amrwbenc"},
		{"build_lib_vorbis", "libvorbis"},
		{"build_lib_vpx", "libvpx"},
		{"build_lib_wavpack", "libwavpack"},
		{"build_lib_webp", "libwebp"},
		{"build_lib_x264", "libx264"},
		{"build_lib_x265", "libx265"},
		{"build_lib_avs", "libavs"},
		{"build_lib_xvid", "libxvid"},

		// other external libraries
		{"build_nvenc", "nvenc"},

		// protocols
		{"build_lib_smbclient", "libsmbclient"},
		{"build_lib_ssh", "libssh"},

		// misc
		{"build_pic", "pic"},
	}
	for _, e := range enableOnly {
		flags = append(flags, FeatureFlag{Feature: e.feature, Category: EnableOnly, Switch: e.sw})
	}
	return flags
}

// DefaultVersionChecks returns the version-threshold catalog.
func DefaultVersionChecks() []VersionCheckSpec {
	return []VersionCheckSpec{
		{Library: "avcodec", MajorBegin: 56, MajorEnd: 60, MinorBegin: 0, MinorEnd: 80},
	}
}

// DefaultProbes returns the deprecation-macro probe catalog.
func DefaultProbes() []ProbeSpec {
	var probes []ProbeSpec
	probes = appendProbes(probes, "libavutil/avutil.h", "",
		"FF_API_OLD_AVOPTIONS",
		"FF_API_PIX_FMT",
		"FF_API_CONTEXT_SIZE",
		"FF_API_PIX_FMT_DESC",
		"FF_API_AV_REVERSE",
		"FF_API_AUDIOCONVERT",
		"FF_API_CPU_FLAG_MMX2",
		"FF_API_LLS_PRIVATE",
		"FF_API_AVFRAME_LAVC",
		"FF_API_VDPAU",
		"FF_API_GET_CHANNEL_LAYOUT_COMPAT",
		"FF_API_XVMC",
		"FF_API_OPT_TYPE_METADATA",
		"FF_API_DLOG",
		"FF_API_HMAC",
		"FF_API_VAAPI",
		"FF_API_PKT_PTS",
		"FF_API_ERROR_FRAME",
		"FF_API_FRAME_QP",
	)
	probes = appendProbes(probes, "libavcodec/avcodec.h", "avcodec",
		"FF_API_VIMA_DECODER",
		"FF_API_REQUEST_CHANNELS",
		"FF_API_OLD_DECODE_AUDIO",
		"FF_API_OLD_ENCODE_AUDIO",
		"FF_API_OLD_ENCODE_VIDEO",
		"FF_API_CODEC_ID",
		"FF_API_AUDIO_CONVERT",
		"FF_API_AVCODEC_RESAMPLE",
		"FF_API_DEINTERLACE",
		"FF_API_DESTRUCT_PACKET",
		"FF_API_GET_BUFFER",
		"FF_API_MISSING_SAMPLE",
		"FF_API_LOWRES",
		"FF_API_CAP_VDPAU",
		"FF_API_BUFS_VDPAU",
		"FF_API_VOXWARE",
		"FF_API_SET_DIMENSIONS",
		"FF_API_DEBUG_MV",
		"FF_API_AC_VLC",
		"FF_API_OLD_MSMPEG4",
		"FF_API_ASPECT_EXTENDED",
		"FF_API_THREAD_OPAQUE",
		"FF_API_CODEC_PKT",
		"FF_API_ARCH_ALPHA",
		"FF_API_ERROR_RATE",
		"FF_API_QSCALE_TYPE",
		"FF_API_MB_TYPE",
		"FF_API_MAX_BFRAMES",
		"FF_API_NEG_LINESIZES",
		"FF_API_EMU_EDGE",
		"FF_API_ARCH_SH4",
		"FF_API_ARCH_SPARC",
		"FF_API_UNUSED_MEMBERS",
		"FF_API_IDCT_XVIDMMX",
		"FF_API_INPUT_PRESERVED",
		"FF_API_NORMALIZE_AQP",
		"FF_API_GMC",
		"FF_API_MV0",
		"FF_API_CODEC_NAME",
		"FF_API_AFD",
		"FF_API_VISMV",
		"FF_API_DV_FRAME_PROFILE",
		"FF_API_AUDIOENC_DELAY",
		"FF_API_VAAPI_CONTEXT",
		"FF_API_AVCTX_TIMEBASE",
		"FF_API_MPV_OPT",
		"FF_API_STREAM_CODEC_TAG",
		"FF_API_QUANT_BIAS",
		"FF_API_RC_STRATEGY",
		"FF_API_CODED_FRAME",
		"FF_API_MOTION_EST",
		"FF_API_WITHOUT_PREFIX",
		"FF_API_CONVERGENCE_DURATION",
		"FF_API_PRIVATE_OPT",
		"FF_API_CODER_TYPE",
		"FF_API_RTP_CALLBACK",
		"FF_API_STAT_BITS",
		"FF_API_VBV_DELAY",
		"FF_API_SIDEDATA_ONLY_PKT",
		"FF_API_AVPICTURE",
	)
	probes = appendProbes(probes, "libavformat/avformat.h", "avformat",
		"FF_API_LAVF_BITEXACT",
		"FF_API_LAVF_FRAC",
		"FF_API_URL_FEOF",
		"FF_API_PROBESIZE_32",
		"FF_API_LAVF_AVCTX",
		"FF_API_OLD_OPEN_CALLBACKS",
	)
	probes = appendProbes(probes, "libavfilter/avfilter.h", "avfilter",
		"FF_API_AVFILTERPAD_PUBLIC",
		"FF_API_FOO_COUNT",
		"FF_API_OLD_FILTER_OPTS",
		"FF_API_OLD_FILTER_OPTS_ERROR",
		"FF_API_AVFILTER_OPEN",
		"FF_API_OLD_FILTER_REGISTER",
		"FF_API_OLD_GRAPH_PARSE",
		"FF_API_NOCONST_GET_NAME",
	)
	probes = appendProbes(probes, "libavresample/avresample.h", "avresample",
		"FF_API_RESAMPLE_CLOSE_OPEN",
	)
	probes = appendProbes(probes, "libswscale/swscale.h", "swscale",
		"FF_API_SWS_CPU_CAPS",
		"FF_API_ARCH_BFIN",
	)
	return probes
}

func appendProbes(probes []ProbeSpec, header, guard string, symbols ...string) []ProbeSpec {
	for _, s := range symbols {
		probes = append(probes, ProbeSpec{Header: header, Guard: guard, Symbol: s})
	}
	return probes
}

// Library is one FFmpeg component library.
type Library struct {
	Name string
	// Feature gates the library; empty means always built.
	Feature string
	// PkgConfig is the pkg-config package name.
	PkgConfig string
	// Headers are bound when the library is enabled.
	Headers []string
}

// Libraries returns the FFmpeg component libraries in link order.
func Libraries() []Library {
	return []Library{
		{Name: "avutil", PkgConfig: "libavutil", Headers: avutilHeaders},
		{Name: "avcodec", Feature: "avcodec", PkgConfig: "libavcodec", Headers: []string{
			"libavcodec/avcodec.h",
			"libavcodec/dv_profile.h",
			"libavcodec/avfft.h",
			"libavcodec/vaapi.h",
			"libavcodec/vorbis_parser.h",
		}},
		{Name: "avformat", Feature: "avformat", PkgConfig: "libavformat", Headers: []string{
			"libavformat/avformat.h",
			"libavformat/avio.h",
		}},
		{Name: "avfilter", Feature: "avfilter", PkgConfig: "libavfilter", Headers: []string{
			"libavfilter/buffersink.h",
			"libavfilter/buffersrc.h",
			"libavfilter/avfilter.h",
		}},
		{Name: "avdevice", Feature: "avdevice", PkgConfig: "libavdevice", Headers: []string{
			"libavdevice/avdevice.h",
		}},
		{Name: "avresample", Feature: "avresample", PkgConfig: "libavresample", Headers: []string{
			"libavresample/avresample.h",
		}},
		{Name: "swscale", Feature: "swscale", PkgConfig: "libswscale", Headers: []string{
			"libswscale/swscale.h",
		}},
		{Name: "swresample", Feature: "swresample", PkgConfig: "libswresample", Headers: []string{
			"libswresample/swresample.h",
		}},
		{Name: "postproc", Feature: "postproc", PkgConfig: "libpostproc", Headers: []string{
			"libpostproc/postprocess.h",
		}},
	}
}

var avutilHeaders = []string{
	"libavutil/adler32.h",
	"libavutil/aes.h",
	"libavutil/audio_fifo.h",
	"libavutil/base64.h",
	"libavutil/blowfish.h",
	"libavutil/bprint.h",
	"libavutil/buffer.h",
	"libavutil/camellia.h",
	"libavutil/cast5.h",
	"libavutil/channel_layout.h",
	"libavutil/cpu.h",
	"libavutil/crc.h",
	"libavutil/dict.h",
	"libavutil/display.h",
	"libavutil/downmix_info.h",
	"libavutil/error.h",
	"libavutil/eval.h",
	"libavutil/fifo.h",
	"libavutil/file.h",
	"libavutil/frame.h",
	"libavutil/hash.h",
	"libavutil/hmac.h",
	"libavutil/imgutils.h",
	"libavutil/lfg.h",
	"libavutil/log.h",
	"libavutil/lzo.h",
	"libavutil/macros.h",
	"libavutil/mathematics.h",
	"libavutil/md5.h",
	"libavutil/mem.h",
	"libavutil/motion_vector.h",
	"libavutil/murmur3.h",
	"libavutil/opt.h",
	"libavutil/parseutils.h",
	"libavutil/pixdesc.h",
	"libavutil/pixfmt.h",
	"libavutil/random_seed.h",
	"libavutil/rational.h",
	"libavutil/replaygain.h",
	"libavutil/ripemd.h",
	"libavutil/samplefmt.h",
	"libavutil/sha.h",
	"libavutil/sha512.h",
	"libavutil/stereo3d.h",
	"libavutil/avstring.h",
	"libavutil/threadmessage.h",
	"libavutil/time.h",
	"libavutil/timecode.h",
	"libavutil/twofish.h",
	"libavutil/avutil.h",
	"libavutil/xtea.h",
}

// Program is an FFmpeg command-line tool produced by the upstream build.
type Program struct {
	Name    string
	Feature string
}

// Programs returns the tools that can be installed next to the libraries.
func Programs() []Program {
	return []Program{
		{Name: "ffmpeg", Feature: "ffmpeg"},
		{Name: "ffplay", Feature: "ffplay"},
		{Name: "ffprobe", Feature: "ffprobe"},
	}
}
