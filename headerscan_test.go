package ffsys

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/google/go-cmp/cmp"
	"modernc.org/cc/v4"
)

// requireFrontEnd skips when the C front end cannot learn the host
// compiler configuration.
func requireFrontEnd(t *testing.T) {
	t.Helper()
	if _, err := cc.NewConfig(runtime.GOOS, runtime.GOARCH); err != nil {
		t.Skipf("no C front end: %v", err)
	}
}

func scanFixtures(t *testing.T, names ...string) *HeaderScan {
	t.Helper()
	requireFrontEnd(t)
	include, headers := fixtureHeaders(t, names...)
	scan, err := CScanner{}.Scan(context.Background(), []string{include}, headers)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	return scan
}

func macroNames(macros []MacroDef) []string {
	var out []string
	for _, m := range macros {
		out = append(out, m.Name)
	}
	return out
}

func macroValues(macros []MacroDef) map[string]IntValue {
	out := make(map[string]IntValue, len(macros))
	for _, m := range macros {
		out[m.Name] = m.Value
	}
	return out
}

func enumerators(scan *HeaderScan, name string) []string {
	for _, e := range scan.Enums {
		if e.Name == name {
			return e.Enumerators
		}
	}
	return nil
}

func TestCScanner_Macros(t *testing.T) {
	scan := scanFixtures(t, "libavutil/channel_layout.h")

	want := []string{
		"AV_CH_FRONT_LEFT",
		"AV_CH_FRONT_RIGHT",
		"AV_CH_FRONT_CENTER",
		"AV_CH_LOW_FREQUENCY_2",
		"AV_CH_LAYOUT_NATIVE",
		"AV_CH_LAYOUT_MONO",
		"AV_CH_LAYOUT_STEREO",
		"AV_CH_LAYOUT_2POINT1",
	}
	if diff := cmp.Diff(want, macroNames(scan.Macros)); diff != "" {
		t.Errorf("macros mismatch (-want +got):\n%s", diff)
	}

	values := macroValues(scan.Macros)
	if got := values["AV_CH_LAYOUT_STEREO"]; got.Bits != 3 || got.Negative() {
		t.Errorf("AV_CH_LAYOUT_STEREO = %+v, want 3", got)
	}
	if got := values["AV_CH_LAYOUT_NATIVE"]; got != UnsignedValue(1<<63) {
		t.Errorf("AV_CH_LAYOUT_NATIVE = %+v, want unsigned 1<<63", got)
	}
	if got := values["AV_CH_LAYOUT_2POINT1"]; got != UnsignedValue(0x800000003) {
		t.Errorf("AV_CH_LAYOUT_2POINT1 = %+v, want unsigned 0x800000003", got)
	}
}

func TestCScanner_ResolvesConditionals(t *testing.T) {
	scan := scanFixtures(t, "libavutil/pixfmt.h")

	// FF_API_XVMC is set by version.h, FF_API_VAAPI is not.
	want := []string{"AV_PIX_FMT_NONE", "AV_PIX_FMT_YUV420P", "AV_PIX_FMT_YUYV422", "AV_PIX_FMT_XVMC", "AV_PIX_FMT_RGB24", "AV_PIX_FMT_NB"}
	if diff := cmp.Diff(want, enumerators(scan, "AVPixelFormat")); diff != "" {
		t.Errorf("AVPixelFormat mismatch (-want +got):\n%s", diff)
	}
	if got := enumerators(scan, "AVDeprecatedThing"); got != nil {
		t.Errorf("disabled enum scanned: %v", got)
	}
	if diff := cmp.Diff([]string{"AVPALETTE_SIZE", "AVPALETTE_COUNT"}, macroNames(scan.Macros)); diff != "" {
		t.Errorf("macros mismatch (-want +got):\n%s", diff)
	}

	wantEnums := []EnumDef{
		{Name: "AVPixelFormat", CType: "enum_AVPixelFormat", Enumerators: want},
		{Name: "AVColorRangeCompat", CType: "AVColorRangeCompat", Enumerators: []string{"AVCOL_RANGE_UNSPECIFIED", "AVCOL_RANGE_MPEG", "AVCOL_RANGE_JPEG", "AVCOL_RANGE_NB"}},
		{Enumerators: []string{"AV_ANON_ONE", "AV_ANON_TWO"}},
	}
	if diff := cmp.Diff(wantEnums, scan.Enums); diff != "" {
		t.Errorf("enums mismatch (-want +got):\n%s", diff)
	}
}

func TestCScanner_GatedDeclarations(t *testing.T) {
	requireFrontEnd(t)
	dir := t.TempDir()
	header := `#ifndef THING_H
#define THING_H
#define FF_API_OLD 1
#define FF_API_GONE 0
#if FF_API_OLD
#define AV_OLD_FLAG 4
#endif
#if FF_API_GONE
#define AV_GONE_FLAG 8
#endif
enum AVThing {
    AV_THING_A,
#if FF_API_OLD
    AV_THING_OLD,
#endif
#if FF_API_GONE
    AV_THING_GONE,
#endif
};
#endif
`
	if err := os.WriteFile(filepath.Join(dir, "thing.h"), []byte(header), 0o644); err != nil {
		t.Fatal(err)
	}

	scan, err := CScanner{}.Scan(context.Background(), []string{dir}, []Header{{Name: "thing.h", Path: filepath.Join(dir, "thing.h")}})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if diff := cmp.Diff([]string{"FF_API_OLD", "FF_API_GONE", "AV_OLD_FLAG"}, macroNames(scan.Macros)); diff != "" {
		t.Errorf("macros mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"AV_THING_A", "AV_THING_OLD"}, enumerators(scan, "AVThing")); diff != "" {
		t.Errorf("enumerators mismatch (-want +got):\n%s", diff)
	}
}

func TestCScanner_UnsignedAndTypedef(t *testing.T) {
	scan := scanFixtures(t, "libavcodec/avcodec.h")

	want := []EnumDef{{Name: "AVDiscard", CType: "enum_AVDiscard", Enumerators: []string{"AVDISCARD_NONE", "AVDISCARD_DEFAULT", "AVDISCARD_ALL"}}}
	if diff := cmp.Diff(want, scan.Enums); diff != "" {
		t.Errorf("enums mismatch (-want +got):\n%s", diff)
	}

	values := macroValues(scan.Macros)
	if got := values["AV_CODEC_FLAG_CLOSED_GOP"]; got != UnsignedValue(1<<31) {
		t.Errorf("AV_CODEC_FLAG_CLOSED_GOP = %+v, want unsigned 1<<31", got)
	}
	if got := values["AV_CODEC_CAP_NEGATIVE_ALIAS"]; got != SignedValue(-2) {
		t.Errorf("AV_CODEC_CAP_NEGATIVE_ALIAS = %+v, want -2", got)
	}
}

func TestCScanner_SkipsNonIntegerMacros(t *testing.T) {
	scan := scanFixtures(t, "libavutil/error.h")

	values := macroValues(scan.Macros)
	for _, name := range []string{"AV_ERROR_URL", "AVERROR", "FFERRTAG", "AVUTIL_ERROR_H"} {
		if _, ok := values[name]; ok {
			t.Errorf("%s scanned as an integer constant", name)
		}
	}
	if got := values["AVERROR_EXPERIMENTAL"]; got != SignedValue(-0x2bb2afa8) {
		t.Errorf("AVERROR_EXPERIMENTAL = %+v", got)
	}
	if got := values["AV_ERROR_MAX_STRING_SIZE"]; got != SignedValue(64) {
		t.Errorf("AV_ERROR_MAX_STRING_SIZE = %+v", got)
	}
}

func TestCScanner_MissingHeader(t *testing.T) {
	requireFrontEnd(t)
	_, err := CScanner{}.Scan(context.Background(), []string{t.TempDir()}, []Header{{Name: "nope.h"}})
	if err == nil {
		t.Fatal("Scan() of a missing header succeeded")
	}
}

func TestCScanner_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (CScanner{}).Scan(ctx, nil, nil); err != context.Canceled {
		t.Errorf("Scan() error = %v, want context.Canceled", err)
	}
}

func TestHeaderOwner(t *testing.T) {
	owner := headerOwner([]Header{
		{Name: "libavutil/avutil.h", Path: "/opt/ff/include/libavutil/avutil.h"},
		{Name: "libavcodec/avcodec.h"},
	})
	tests := []struct {
		file string
		want int
	}{
		{"/opt/ff/include/libavutil/avutil.h", 0},
		{"/opt/ff/include/libavutil/../libavutil/avutil.h", 0},
		{"/usr/include/libavcodec/avcodec.h", 1},
		{"/usr/include/libavcodec/version.h", -1},
		{"/usr/include/xavcodec/avcodec.h", -1},
	}
	for _, tt := range tests {
		if got := owner(tt.file); got != tt.want {
			t.Errorf("owner(%q) = %d, want %d", tt.file, got, tt.want)
		}
	}
}
