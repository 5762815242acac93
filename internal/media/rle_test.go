package media

import (
	"bytes"
	"errors"
	"math/rand/v2"
	"testing"
)

func TestDecodeRLE(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   []byte
		want []byte
	}{
		{"empty", nil, []byte{}},
		{"literal", []byte{2, 'a', 'b', 'c'}, []byte("abc")},
		{"replicate", []byte{0xfd, 'x'}, []byte("xxxx")},
		{"longest replicate", []byte{0x80, 7}, bytes.Repeat([]byte{7}, 129)},
		{"mixed", []byte{0, 'a', 0xff, 'b', 1, 'c', 'd'}, []byte("abbcd")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := DecodeRLE(tc.in, -1)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(got, tc.want) {
				t.Fatalf("DecodeRLE(%x) = %x, want %x", tc.in, got, tc.want)
			}
		})
	}
}

func TestDecodeRLELimit(t *testing.T) {
	t.Parallel()
	in := []byte{0xfb, 1, 0xfb, 2, 0xfb, 3}
	got, err := DecodeRLE(in, 8)
	if err != nil {
		t.Fatal(err)
	}
	// The limit is checked between runs, so the second run completes.
	if len(got) != 12 {
		t.Fatalf("len = %d, want 12", len(got))
	}
}

func TestDecodeRLETruncated(t *testing.T) {
	t.Parallel()
	got, err := DecodeRLE([]byte{4, 'a', 'b'}, -1)
	if !errors.Is(err, ErrTruncatedRun) {
		t.Fatalf("literal: expected ErrTruncatedRun, got %v", err)
	}
	if string(got) != "ab" {
		t.Fatalf("literal: partial output %q", got)
	}

	got, err = DecodeRLE([]byte{0, 'z', 0xfe}, -1)
	if !errors.Is(err, ErrTruncatedRun) {
		t.Fatalf("replicate: expected ErrTruncatedRun, got %v", err)
	}
	if string(got) != "z" {
		t.Fatalf("replicate: partial output %q", got)
	}
}

func TestRLERoundTrip(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewPCG(1, 2))
	inputs := [][]byte{
		{},
		{9},
		bytes.Repeat([]byte{7}, 50),
		bytes.Repeat([]byte{1, 2}, 300),
		bytes.Repeat([]byte{0}, 1000),
	}
	for range 20 {
		n := rng.IntN(2000)
		b := make([]byte, n)
		for i := range b {
			// Few distinct values so both run kinds occur.
			b[i] = byte(rng.IntN(3))
		}
		inputs = append(inputs, b)
	}
	for i, in := range inputs {
		enc := EncodeRLE(in)
		dec, err := DecodeRLE(enc, -1)
		if err != nil {
			t.Fatalf("input %d: %v", i, err)
		}
		if !bytes.Equal(dec, in) {
			t.Fatalf("input %d: round trip mismatch (len %d vs %d)", i, len(dec), len(in))
		}
	}
}

func TestRLEDeclaredLengths(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewPCG(3, 4))
	for range 50 {
		var stream []byte
		total := 0
		for range rng.IntN(40) {
			n := 1 + rng.IntN(128)
			if rng.IntN(2) == 0 {
				stream = append(stream, byte(n-1))
				for range n {
					stream = append(stream, byte(rng.IntN(256)))
				}
			} else {
				if n == 1 {
					n = 2
				}
				stream = append(stream, byte(int8(1-n)), byte(rng.IntN(256)))
			}
			total += n
		}
		got, err := DecodeRLE(stream, -1)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != total {
			t.Fatalf("decoded %d bytes, runs declare %d", len(got), total)
		}
	}
}

func TestEncodeRLERunBounds(t *testing.T) {
	t.Parallel()
	enc := EncodeRLE(bytes.Repeat([]byte{5}, 300))
	// 128 + 128 + 44
	want := []byte{0x81, 5, 0x81, 5, 0xd5, 5}
	if !bytes.Equal(enc, want) {
		t.Fatalf("EncodeRLE = %x, want %x", enc, want)
	}

	lit := make([]byte, 200)
	for i := range lit {
		lit[i] = byte(i)
	}
	enc = EncodeRLE(lit)
	if enc[0] != 127 || enc[129] != 71 {
		t.Fatalf("literal chunking: headers %d, %d", enc[0], enc[129])
	}
}
