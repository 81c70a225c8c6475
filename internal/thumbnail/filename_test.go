package thumbnail

import "testing"

func TestFilenameRoundTrip(t *testing.T) {
	cases := []struct {
		id     int64
		expiry int64
		nsfw   bool
		want   string
	}{
		{42, 1700001800, true, "42-1700001800-nsfw.png"},
		{7, 1, false, "7-1-sfw.png"},
		{123456789, 9999999999, false, "123456789-9999999999-sfw.png"},
	}
	for _, tc := range cases {
		name := encodeName(tc.id, tc.expiry, tc.nsfw)
		if name != tc.want {
			t.Errorf("encodeName(%d, %d, %v) = %q, want %q", tc.id, tc.expiry, tc.nsfw, name, tc.want)
		}
		id, expiry, nsfw, err := decodeName(name)
		if err != nil {
			t.Errorf("decodeName(%q): %v", name, err)
			continue
		}
		if id != tc.id || expiry != tc.expiry || nsfw != tc.nsfw {
			t.Errorf("decodeName(%q) = (%d, %d, %v), want (%d, %d, %v)",
				name, id, expiry, nsfw, tc.id, tc.expiry, tc.nsfw)
		}
	}
}

func TestDecodeNameMalformed(t *testing.T) {
	for _, name := range []string{
		"42.png",         // no segments
		"42-123.png",     // missing maturity
		"42-abc-sfw.png", // unparsable expiry
		"x-123-sfw.png",  // unparsable id
		"42-1-2-3.png",   // too many segments
	} {
		if _, _, _, err := decodeName(name); err == nil {
			t.Errorf("decodeName(%q) should fail", name)
		}
	}
}

func TestDecodeNameAcceptsFullPath(t *testing.T) {
	id, expiry, nsfw, err := decodeName("/var/cache/flb/42-1700001800-nsfw.png")
	if err != nil {
		t.Fatalf("decodeName: %v", err)
	}
	if id != 42 || expiry != 1700001800 || !nsfw {
		t.Fatalf("got (%d, %d, %v)", id, expiry, nsfw)
	}
}
