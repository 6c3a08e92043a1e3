package jukebox

import "testing"

func TestRingBufferBasicWriteRead(t *testing.T) {
	rb := newAudioRingBuffer(16)

	data := []byte{1, 2, 3, 4, 5}
	rb.Write(data)

	if rb.Buffered() != 5 {
		t.Fatalf("expected 5 buffered bytes, got %d", rb.Buffered())
	}

	out := make([]byte, 5)
	n, err := rb.Read(out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 5 {
		t.Fatalf("expected 5 bytes read, got %d", n)
	}
	for i, b := range out {
		if b != data[i] {
			t.Fatalf("byte %d: expected %d, got %d", i, data[i], b)
		}
	}
}

func TestRingBufferOverflowDropsOldest(t *testing.T) {
	rb := newAudioRingBuffer(8)

	rb.Write([]byte{1, 2, 3, 4, 5, 6})
	rb.Write([]byte{7, 8, 9, 10, 11})

	if rb.Buffered() != 8 {
		t.Fatalf("expected 8 buffered bytes, got %d", rb.Buffered())
	}

	out := make([]byte, 8)
	rb.Read(out)
	expected := []byte{4, 5, 6, 7, 8, 9, 10, 11}
	for i, b := range out {
		if b != expected[i] {
			t.Fatalf("byte %d: expected %d, got %d", i, expected[i], b)
		}
	}
}

func TestRingBufferWriteLargerThanCapacity(t *testing.T) {
	rb := newAudioRingBuffer(4)

	rb.Write([]byte{1, 2, 3, 4, 5, 6, 7, 8})

	if rb.Buffered() != 4 {
		t.Fatalf("expected 4 buffered bytes, got %d", rb.Buffered())
	}

	out := make([]byte, 4)
	rb.Read(out)
	expected := []byte{5, 6, 7, 8}
	for i, b := range out {
		if b != expected[i] {
			t.Fatalf("byte %d: expected %d, got %d", i, expected[i], b)
		}
	}
}

func TestRingBufferUnderrunPadsSilence(t *testing.T) {
	rb := newAudioRingBuffer(8)
	rb.Write([]byte{9, 9})

	out := []byte{1, 1, 1, 1}
	n, err := rb.Read(out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 4 {
		t.Fatalf("expected a full read of 4, got %d", n)
	}
	expected := []byte{9, 9, 0, 0}
	for i, b := range out {
		if b != expected[i] {
			t.Fatalf("byte %d: expected %d, got %d", i, expected[i], b)
		}
	}

	if rb.Buffered() != 0 {
		t.Fatalf("expected empty buffer, got %d", rb.Buffered())
	}
}

func TestRingBufferClear(t *testing.T) {
	rb := newAudioRingBuffer(8)
	rb.Write([]byte{1, 2, 3})
	rb.Clear()

	if rb.Buffered() != 0 {
		t.Fatalf("expected empty buffer after clear, got %d", rb.Buffered())
	}
}
