package wire

import "testing"

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	h := StandardHeader{
		PacketType: PacketData,
		Sequence:   0xBEEF,
		AckSeq:     0x1234,
		AckField:   0xDEADBEEF,
	}

	body := []byte("hello gaia")
	framed := append(h.Marshal(), body...)

	got, stripped, err := Unmarshal(framed)
	if err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}
	if got != h {
		t.Errorf("Unmarshal() = %+v, want %+v", got, h)
	}
	if string(stripped) != string(body) {
		t.Errorf("stripped payload = %q, want %q", stripped, body)
	}
}

func TestUnmarshalTruncated(t *testing.T) {
	if _, _, err := Unmarshal([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for truncated header")
	}
}

func TestHeaderSizeConstant(t *testing.T) {
	h := StandardHeader{}
	if len(h.Marshal()) != HeaderSize {
		t.Errorf("Marshal() length = %d, want %d", len(h.Marshal()), HeaderSize)
	}
	if BytesNumber() != HeaderSize {
		t.Errorf("BytesNumber() = %d, want %d", BytesNumber(), HeaderSize)
	}
}
