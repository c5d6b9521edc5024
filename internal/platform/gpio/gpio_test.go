package gpio

import "testing"

func TestTrimNUL(t *testing.T) {
	cases := []struct {
		in   []byte
		want string
	}{
		{[]byte("1\n"), "1"},
		{[]byte("0\n"), "0"},
		{[]byte{0, 0, 0}, ""},
		{[]byte("1"), "1"},
	}
	for _, c := range cases {
		if got := trimNUL(c.in); got != c.want {
			t.Errorf("trimNUL(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
