package onewire

import "testing"

func TestParseScratchpadValidReading(t *testing.T) {
	raw := "4b 46 7f ff 0c 10 10 d6 a4 : crc=a4 YES\n4b 46 7f ff 0c 10 10 d6 a4 t=23562\n"
	got, err := parseScratchpad(raw)
	if err != nil {
		t.Fatalf("parseScratchpad returned error: %v", err)
	}
	if got != 23.562 {
		t.Fatalf("temperature = %v, want 23.562", got)
	}
}

func TestParseScratchpadRejectsBadCRC(t *testing.T) {
	raw := "4b 46 7f ff 0c 10 10 d6 00 : crc=00 NO\n4b 46 7f ff 0c 10 10 d6 00 t=23562\n"
	if _, err := parseScratchpad(raw); err == nil {
		t.Fatal("expected a CRC validation error")
	}
}

func TestParseScratchpadRejectsMalformedLineCount(t *testing.T) {
	if _, err := parseScratchpad("only one line"); err == nil {
		t.Fatal("expected a malformed-scratchpad error")
	}
}

func TestIsHex(t *testing.T) {
	cases := map[string]bool{"4b": true, "FF": true, "0c": true, "zz": false, "1": true}
	for in, want := range cases {
		if got := isHex(in); got != want {
			t.Errorf("isHex(%q) = %v, want %v", in, got, want)
		}
	}
}
