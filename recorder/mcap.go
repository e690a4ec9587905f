package recorder

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/foxglove/mcap/go/mcap"

	"github.com/c360/sensorwire/errors"
)

// JSON schemas for the topics Foxglove Studio visualizes directly. Topics
// without an entry get a schema-less channel.
var topicSchemas = map[string]struct {
	name string
	data string
}{
	"/sensor/imu": {"IMUData", `{"type":"object","properties":{` +
		`"angularVelocity":{"type":"array","items":{"type":"number"}},` +
		`"linearAcceleration":{"type":"array","items":{"type":"number"}},` +
		`"timestampNs":{"type":"integer"}}}`},
	"/sensor/gps": {"GPSData", `{"type":"object","properties":{` +
		`"latitude":{"type":"number"},"longitude":{"type":"number"},` +
		`"altitude":{"type":"number"},"horizontalAccuracy":{"type":"number"},` +
		`"verticalAccuracy":{"type":"number"},"timestampNs":{"type":"integer"}}}`},
	"/sensor/pose": {"PoseData", `{"type":"object","properties":{` +
		`"position":{"type":"array","items":{"type":"number"}},` +
		`"rotation":{"type":"array","items":{"type":"number"}},` +
		`"trackingState":{"type":"string"},"timestampNs":{"type":"integer"}}}`},
}

type channelState struct {
	id       uint16
	sequence uint32
}

// MCAPSink writes records to an MCAP file, registering one channel per topic
// on first use
type MCAPSink struct {
	mu     sync.Mutex
	file   *os.File
	writer *mcap.Writer
	closed bool

	channels     map[string]*channelState
	nextSchemaID uint16
	nextChanID   uint16
	messages     int64
}

var _ Sink = (*MCAPSink)(nil)

// NewMCAPSink creates path and writes the MCAP header
func NewMCAPSink(path string) (*MCAPSink, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, errors.WrapFatal(err, "recorder", "NewMCAPSink", "create output file")
	}

	writer, err := mcap.NewWriter(file, &mcap.WriterOptions{
		Chunked:     true,
		Compression: mcap.CompressionLZ4,
	})
	if err != nil {
		_ = file.Close()
		return nil, errors.WrapFatal(err, "recorder", "NewMCAPSink", "create writer")
	}
	if err := writer.WriteHeader(&mcap.Header{Library: "sensorwire"}); err != nil {
		_ = file.Close()
		return nil, errors.WrapFatal(err, "recorder", "NewMCAPSink", "write header")
	}

	return &MCAPSink{
		file:         file,
		writer:       writer,
		channels:     map[string]*channelState{},
		nextSchemaID: 1,
	}, nil
}

// Write implements Sink
func (s *MCAPSink) Write(topic string, timestampNs int64, encoding string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.WrapInvalid(
			fmt.Errorf("sink closed"), "recorder", "Write", "check sink state")
	}

	ch, err := s.channel(topic, encoding)
	if err != nil {
		return err
	}

	if timestampNs <= 0 {
		timestampNs = time.Now().UnixNano()
	}
	msg := &mcap.Message{
		ChannelID:   ch.id,
		Sequence:    ch.sequence,
		LogTime:     uint64(timestampNs),
		PublishTime: uint64(timestampNs),
		Data:        payload,
	}
	if err := s.writer.WriteMessage(msg); err != nil {
		return errors.WrapTransient(err, "recorder", "Write", fmt.Sprintf("write message on %s", topic))
	}
	ch.sequence++
	s.messages++
	return nil
}

// channel returns the topic's channel, registering schema and channel records
// on first use. Caller holds mu.
func (s *MCAPSink) channel(topic, encoding string) (*channelState, error) {
	if ch, ok := s.channels[topic]; ok {
		return ch, nil
	}

	schemaID := uint16(0)
	messageEncoding := encoding
	if schema, ok := topicSchemas[topic]; ok {
		schemaID = s.nextSchemaID
		if err := s.writer.WriteSchema(&mcap.Schema{
			ID:       schemaID,
			Name:     schema.name,
			Encoding: "jsonschema",
			Data:     []byte(schema.data),
		}); err != nil {
			return nil, errors.WrapTransient(err, "recorder", "Write", fmt.Sprintf("register schema for %s", topic))
		}
		s.nextSchemaID++
		messageEncoding = "json"
	}

	if err := s.writer.WriteChannel(&mcap.Channel{
		ID:              s.nextChanID,
		SchemaID:        schemaID,
		Topic:           topic,
		MessageEncoding: messageEncoding,
		Metadata:        map[string]string{},
	}); err != nil {
		return nil, errors.WrapTransient(err, "recorder", "Write", fmt.Sprintf("register channel for %s", topic))
	}

	ch := &channelState{id: s.nextChanID}
	s.nextChanID++
	s.channels[topic] = ch
	return ch, nil
}

// Messages returns the number of messages written so far
func (s *MCAPSink) Messages() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messages
}

// Close finalizes the file. Idempotent.
func (s *MCAPSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	werr := s.writer.Close()
	cerr := s.file.Close()
	if werr != nil {
		return errors.WrapTransient(werr, "recorder", "Close", "finalize writer")
	}
	if cerr != nil {
		return errors.WrapTransient(cerr, "recorder", "Close", "close file")
	}
	return nil
}
