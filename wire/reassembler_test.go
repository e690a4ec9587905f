package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/sensorwire/errors"
)

func TestFeedSingleFrame(t *testing.T) {
	r := NewReassembler(0)
	payload := []byte("hello sensor")

	frames, err := r.Feed(AppendFrame(nil, payload))

	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, payload, frames[0])
	assert.Zero(t, r.Pending())
}

func TestFeedMultipleFramesOneChunk(t *testing.T) {
	r := NewReassembler(0)
	payloads := [][]byte{
		[]byte(`{"sensorType":"imu"}`),
		{0x01, 0x02, 0x03},
		[]byte(""),
		bytes.Repeat([]byte{0xAB}, 1024),
	}
	var stream []byte
	for _, p := range payloads {
		stream = AppendFrame(stream, p)
	}

	frames, err := r.Feed(stream)

	require.NoError(t, err)
	require.Len(t, frames, len(payloads))
	for i, p := range payloads {
		assert.Equal(t, p, frames[i], "frame %d", i)
	}
}

// Delivers N concatenated frames split at every possible byte boundary and
// verifies exactly N payloads come out, in order, byte-identical.
func TestFeedEverySplitBoundary(t *testing.T) {
	payloads := [][]byte{
		[]byte("first"),
		[]byte(`{"sensorType":"gps","timestampNs":42}`),
		{0x00, 0xFF, 0x10},
	}
	var stream []byte
	for _, p := range payloads {
		stream = AppendFrame(stream, p)
	}

	for split := 0; split <= len(stream); split++ {
		r := NewReassembler(0)

		frames, err := r.Feed(stream[:split])
		require.NoError(t, err, "split %d first half", split)
		more, err := r.Feed(stream[split:])
		require.NoError(t, err, "split %d second half", split)
		frames = append(frames, more...)

		require.Len(t, frames, len(payloads), "split %d", split)
		for i, p := range payloads {
			assert.Equal(t, p, frames[i], "split %d frame %d", split, i)
		}
	}
}

func TestFeedByteAtATime(t *testing.T) {
	r := NewReassembler(0)
	payload := []byte("one byte at a time")
	stream := AppendFrame(nil, payload)

	var frames [][]byte
	for _, b := range stream {
		got, err := r.Feed([]byte{b})
		require.NoError(t, err)
		frames = append(frames, got...)
	}

	require.Len(t, frames, 1)
	assert.Equal(t, payload, frames[0])
}

func TestFeedEmptyChunk(t *testing.T) {
	r := NewReassembler(0)

	frames, err := r.Feed(nil)

	require.NoError(t, err)
	assert.Empty(t, frames)
}

func TestFeedOversizeHeader(t *testing.T) {
	r := NewReassembler(16)
	good := AppendFrame(nil, []byte("ok"))
	bad := []byte{0xFF, 0xFF, 0xFF, 0x7F} // declares ~2 GiB

	frames, err := r.Feed(append(good, bad...))

	// The frame completed before the bad header is still delivered.
	require.Len(t, frames, 1)
	assert.Equal(t, []byte("ok"), frames[0])
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrFrameTooLarge)
	assert.True(t, errors.IsInvalid(err))
}

func TestFeedPartialHeaderRetained(t *testing.T) {
	r := NewReassembler(0)
	stream := AppendFrame(nil, []byte("abc"))

	frames, err := r.Feed(stream[:2]) // half a header
	require.NoError(t, err)
	assert.Empty(t, frames)
	assert.Equal(t, 2, r.Pending())

	frames, err = r.Feed(stream[2:])
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, []byte("abc"), frames[0])
}

func TestClassify(t *testing.T) {
	assert.Equal(t, Text, Classify([]byte(`{"sensorType":"imu"}`)))
	assert.Equal(t, Binary, Classify([]byte{0x89, 0x50}))
	assert.Equal(t, Binary, Classify(nil))
}
