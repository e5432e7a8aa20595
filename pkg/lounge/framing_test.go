package lounge

import (
	"errors"
	"math/rand"
	"testing"
)

func encodeAll(frames []string) []byte {
	var out []byte
	for _, f := range frames {
		out = append(out, EncodeFrame(f)...)
	}
	return out
}

func drain(t *testing.T, d *FrameDecoder) []string {
	t.Helper()
	var got []string
	for {
		frame, ok, err := d.Next()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !ok {
			return got
		}
		got = append(got, frame)
	}
}

func equalFrames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

var sampleFrames = []string{
	`[[0,["c","SID123","",8]],[1,["S","GS456"]]]`,
	`[[2,["noop"]]]`,
	`[[3,["nowPlaying",{"videoId":"v1","cpn":"X"}]]]`,
	"",
	`[[4,["onVolumeChanged",{"volume":"42","muted":"false"}]]]` + "\n",
	`[[5,["unicode",{"title":"héllo 世界"}]]]`,
}

func TestFrameDecoderWhole(t *testing.T) {
	d := NewFrameDecoder()
	d.Write(encodeAll(sampleFrames))

	got := drain(t, d)
	if !equalFrames(got, sampleFrames) {
		t.Errorf("expected %q, got %q", sampleFrames, got)
	}
	if d.Buffered() != 0 {
		t.Errorf("expected empty buffer, got %d bytes", d.Buffered())
	}
}

func TestFrameDecoderByteAtATime(t *testing.T) {
	d := NewFrameDecoder()
	var got []string
	for _, b := range encodeAll(sampleFrames) {
		d.Write([]byte{b})
		got = append(got, drain(t, d)...)
	}
	if !equalFrames(got, sampleFrames) {
		t.Errorf("expected %q, got %q", sampleFrames, got)
	}
}

func TestFrameDecoderRandomSplits(t *testing.T) {
	data := encodeAll(sampleFrames)
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 200; i++ {
		d := NewFrameDecoder()
		var got []string
		rest := data
		for len(rest) > 0 {
			n := rng.Intn(len(rest)) + 1
			d.Write(rest[:n])
			rest = rest[n:]
			got = append(got, drain(t, d)...)
		}
		if !equalFrames(got, sampleFrames) {
			t.Fatalf("iteration %d: expected %q, got %q", i, sampleFrames, got)
		}
	}
}

func TestFrameDecoderNeedsMoreData(t *testing.T) {
	d := NewFrameDecoder()
	d.Write([]byte("10\n01234"))

	_, ok, err := d.Next()
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected no frame before content is complete")
	}

	d.Write([]byte("56789"))
	frame, ok, err := d.Next()
	if err != nil {
		t.Fatal(err)
	}
	if !ok || frame != "0123456789" {
		t.Errorf("expected 0123456789, got %q (ok=%v)", frame, ok)
	}
}

func TestFrameDecoderRejectsNonDigitHeader(t *testing.T) {
	for _, header := range []string{"1a\nx", "-1\nx", " 5\nhello", "5\r\nhello", "\nhello"} {
		d := NewFrameDecoder()
		d.Write([]byte(header))

		frame, ok, err := d.Next()
		if !errors.Is(err, ErrInvalidFraming) {
			t.Errorf("header %q: expected ErrInvalidFraming, got %v", header, err)
		}
		if ok || frame != "" {
			t.Errorf("header %q: expected no frame, got %q", header, frame)
		}

		// Poisoned decoders keep failing.
		d.Write(EncodeFrame("ok"))
		if _, _, err := d.Next(); !errors.Is(err, ErrInvalidFraming) {
			t.Errorf("header %q: expected poisoned decoder, got %v", header, err)
		}
	}
}

func TestFrameDecoderRejectsInvalidUTF8(t *testing.T) {
	d := NewFrameDecoder()
	d.Write([]byte("2\n\xff\xfe"))
	if _, _, err := d.Next(); !errors.Is(err, ErrInvalidFraming) {
		t.Errorf("expected ErrInvalidFraming, got %v", err)
	}
}

func TestFrameDecoderReset(t *testing.T) {
	d := NewFrameDecoder()
	d.Write([]byte("x\n"))
	if _, _, err := d.Next(); err == nil {
		t.Fatal("expected error")
	}

	d.Reset()
	d.Write(EncodeFrame("fresh"))
	frame, ok, err := d.Next()
	if err != nil {
		t.Fatal(err)
	}
	if !ok || frame != "fresh" {
		t.Errorf("expected fresh, got %q", frame)
	}
}

func FuzzFrameDecoder(f *testing.F) {
	f.Add([]byte("3\nabc"), 1)
	f.Add([]byte("0\n"), 2)
	f.Add([]byte("12\n[[1,[\"x\"]]]"), 5)
	f.Add([]byte("9x\n"), 1)

	f.Fuzz(func(t *testing.T, data []byte, chunk int) {
		if chunk < 1 {
			chunk = 1
		}

		whole := NewFrameDecoder()
		whole.Write(data)
		var want []string
		var wantErr error
		for {
			frame, ok, err := whole.Next()
			if err != nil {
				wantErr = err
				break
			}
			if !ok {
				break
			}
			want = append(want, frame)
		}

		split := NewFrameDecoder()
		var got []string
		var gotErr error
		for rest := data; len(rest) > 0 && gotErr == nil; {
			n := min(chunk, len(rest))
			split.Write(rest[:n])
			rest = rest[n:]
			for {
				frame, ok, err := split.Next()
				if err != nil {
					gotErr = err
					break
				}
				if !ok {
					break
				}
				got = append(got, frame)
			}
		}

		if !equalFrames(got, want) {
			t.Fatalf("chunked decode %q differs from whole decode %q", got, want)
		}
		if (wantErr == nil) != (gotErr == nil) {
			t.Fatalf("error mismatch: whole=%v chunked=%v", wantErr, gotErr)
		}
	})
}
