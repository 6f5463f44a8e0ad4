// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package graph

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapidaai/audiograph/audio"
	"github.com/rapidaai/audiograph/pkg/commons"
	"github.com/rapidaai/audiograph/processors"
	"github.com/rapidaai/audiograph/sinks"
	"github.com/rapidaai/audiograph/sources"
)

var mono16k = audio.Format{SampleRate: 16000, Channels: 1, SampleFormat: audio.SampleFormatF32}

func newTestLogger(t *testing.T) commons.Logger {
	t.Helper()
	logger, err := commons.NewApplicationLogger(commons.Name("test-graph"), commons.Level("debug"))
	require.NoError(t, err)
	return logger
}

func testBuffer(t *testing.T, frames int) *audio.Buffer {
	t.Helper()
	buf, err := audio.NewBuffer(mono16k, make([]float32, frames), time.Now())
	require.NoError(t, err)
	return buf
}

// stubSource emits a scripted list of buffers, then reports no data.
type stubSource struct {
	buffers  []*audio.Buffer
	started  bool
	startErr error
	produced uint64
}

func (s *stubSource) Configure(audio.Format) error { return nil }

func (s *stubSource) Start() error {
	if s.startErr != nil {
		return s.startErr
	}
	s.started = true
	return nil
}

func (s *stubSource) Stop() error {
	s.started = false
	return nil
}

func (s *stubSource) Read() (*audio.Buffer, error) {
	if !s.started || len(s.buffers) == 0 {
		return nil, nil
	}
	buf := s.buffers[0]
	s.buffers = s.buffers[1:]
	s.produced++
	return buf, nil
}

func (s *stubSource) Format() audio.Format { return mono16k }

func (s *stubSource) Stats() audio.SourceStats {
	return audio.SourceStats{BuffersProduced: s.produced}
}

// passProcessor forwards its single input and records the traversal order.
type passProcessor struct {
	name      string
	order     *[]string
	processed uint64
}

func (p *passProcessor) Process(inputs []*audio.Buffer) (*audio.Buffer, error) {
	p.processed++
	if p.order != nil {
		*p.order = append(*p.order, p.name)
	}
	return inputs[0], nil
}

func (p *passProcessor) FormatIn() audio.Format  { return mono16k }
func (p *passProcessor) FormatOut() audio.Format { return mono16k }

func (p *passProcessor) Stats() audio.ProcessorStats {
	return audio.ProcessorStats{BuffersProcessed: p.processed}
}

// failingSink rejects every write.
type failingSink struct {
	err error
}

func (s *failingSink) Write(*audio.Buffer) error { return s.err }
func (s *failingSink) Flush() error              { return nil }
func (s *failingSink) Close() error              { return nil }
func (s *failingSink) Stats() audio.SinkStats    { return audio.SinkStats{} }

// ============================================================================
// Validation
// ============================================================================

func TestValidateRequiresSourceAndSink(t *testing.T) {
	logger := newTestLogger(t)

	g := New(logger)
	assert.ErrorIs(t, g.Validate(), ErrNoSource, "empty graph has no source")

	_, err := g.AddSource(&stubSource{})
	require.NoError(t, err)
	assert.ErrorIs(t, g.Validate(), ErrNoSink, "source-only graph has no sink")
}

func TestValidateDetectsCycle(t *testing.T) {
	g := New(newTestLogger(t))

	src, err := g.AddSource(&stubSource{})
	require.NoError(t, err)
	p1, err := g.AddProcessor(&passProcessor{name: "p1"})
	require.NoError(t, err)
	p2, err := g.AddProcessor(&passProcessor{name: "p2"})
	require.NoError(t, err)
	sink, err := g.AddSink(sinks.NewNullSink())
	require.NoError(t, err)

	require.NoError(t, g.Connect(src, p1))
	require.NoError(t, g.Connect(p1, p2))
	require.NoError(t, g.Connect(p2, p1))
	require.NoError(t, g.Connect(p2, sink))

	assert.ErrorIs(t, g.Validate(), ErrCycleDetected)
}

func TestValidateRejectsOrphanNode(t *testing.T) {
	g := New(newTestLogger(t))

	src, err := g.AddSource(&stubSource{})
	require.NoError(t, err)
	sink, err := g.AddSink(sinks.NewNullSink())
	require.NoError(t, err)
	orphan, err := g.AddProcessor(&passProcessor{name: "orphan"})
	require.NoError(t, err)

	require.NoError(t, g.Connect(src, sink))
	assert.ErrorIs(t, g.Validate(), ErrUnreachableNode)

	// Attaching the orphan to the flow fixes it.
	require.NoError(t, g.Disconnect(src, sink))
	require.NoError(t, g.Connect(src, orphan))
	require.NoError(t, g.Connect(orphan, sink))
	assert.NoError(t, g.Validate())
}

func TestConnectRejectsIllegalEdges(t *testing.T) {
	g := New(newTestLogger(t))

	src, err := g.AddSource(&stubSource{})
	require.NoError(t, err)
	proc, err := g.AddProcessor(&passProcessor{name: "p"})
	require.NoError(t, err)
	sink, err := g.AddSink(sinks.NewNullSink())
	require.NoError(t, err)

	assert.ErrorIs(t, g.Connect(proc, proc), ErrInvalidEdge, "self edge")
	assert.ErrorIs(t, g.Connect(proc, src), ErrInvalidEdge, "edge into a source")
	assert.ErrorIs(t, g.Connect(sink, proc), ErrInvalidEdge, "edge out of a sink")

	require.NoError(t, g.Connect(src, proc))
	assert.ErrorIs(t, g.Connect(src, proc), ErrDuplicateEdge)

	assert.ErrorIs(t, g.Disconnect(proc, sink), ErrInvalidEdge, "edge never existed")
}

func TestRemoveInvalidatesNodeID(t *testing.T) {
	g := New(newTestLogger(t))

	src, err := g.AddSource(&stubSource{})
	require.NoError(t, err)
	proc, err := g.AddProcessor(&passProcessor{name: "p"})
	require.NoError(t, err)
	require.NoError(t, g.Connect(src, proc))

	require.NoError(t, g.Remove(proc))
	assert.ErrorIs(t, g.Connect(src, proc), ErrStaleNode)
	assert.ErrorIs(t, g.Remove(proc), ErrStaleNode, "double remove")

	// The freed slot is reused under a new generation; the stale handle must
	// still not resolve to the new occupant.
	replacement, err := g.AddProcessor(&passProcessor{name: "p2"})
	require.NoError(t, err)
	assert.Equal(t, proc.index, replacement.index, "slot reused")
	assert.NotEqual(t, proc.generation, replacement.generation)
	assert.ErrorIs(t, g.Connect(src, proc), ErrStaleNode)
	assert.NoError(t, g.Connect(src, replacement))
}

// ============================================================================
// Lifecycle
// ============================================================================

func TestMutationRequiresIdle(t *testing.T) {
	g := New(newTestLogger(t))

	src, err := g.AddSource(&stubSource{})
	require.NoError(t, err)
	sink, err := g.AddSink(sinks.NewNullSink())
	require.NoError(t, err)
	require.NoError(t, g.Connect(src, sink))
	require.NoError(t, g.Start())

	_, err = g.AddSource(&stubSource{})
	assert.ErrorIs(t, err, ErrNotIdle)
	assert.ErrorIs(t, g.Connect(src, sink), ErrNotIdle)
	assert.ErrorIs(t, g.Disconnect(src, sink), ErrNotIdle)
	assert.ErrorIs(t, g.Remove(src), ErrNotIdle)
	assert.ErrorIs(t, g.Start(), ErrNotIdle, "double start")

	require.NoError(t, g.Stop())
	assert.Equal(t, StateIdle, g.State())
}

func TestProcessOnceRequiresActive(t *testing.T) {
	g := New(newTestLogger(t))
	assert.ErrorIs(t, g.ProcessOnce(), ErrNotActive)
	assert.ErrorIs(t, g.Stop(), ErrNotActive)
}

func TestStartFailureIsTerminal(t *testing.T) {
	g := New(newTestLogger(t))

	boom := errors.New("device busy")
	src, err := g.AddSource(&stubSource{startErr: boom})
	require.NoError(t, err)
	sink, err := g.AddSink(sinks.NewNullSink())
	require.NoError(t, err)
	require.NoError(t, g.Connect(src, sink))

	assert.ErrorIs(t, g.Start(), boom)
	assert.Equal(t, StateError, g.State())
	assert.ErrorIs(t, g.ProcessOnce(), ErrNotActive)
}

func TestStartOnInvalidTopologyStaysIdle(t *testing.T) {
	g := New(newTestLogger(t))
	_, err := g.AddSource(&stubSource{})
	require.NoError(t, err)

	assert.ErrorIs(t, g.Start(), ErrNoSink)
	assert.Equal(t, StateIdle, g.State(), "validation failure must not consume the graph")
}

// ============================================================================
// Processing
// ============================================================================

func TestBufferTraversesPipelineInOneTick(t *testing.T) {
	g := New(newTestLogger(t))

	var order []string
	src, err := g.AddSource(&stubSource{buffers: []*audio.Buffer{testBuffer(t, 160)}})
	require.NoError(t, err)
	p1, err := g.AddProcessor(&passProcessor{name: "p1", order: &order})
	require.NoError(t, err)
	p2, err := g.AddProcessor(&passProcessor{name: "p2", order: &order})
	require.NoError(t, err)
	bufSink := sinks.NewBufferSink(newTestLogger(t), 16)
	sink, err := g.AddSink(bufSink)
	require.NoError(t, err)

	require.NoError(t, g.Connect(src, p1))
	require.NoError(t, g.Connect(p1, p2))
	require.NoError(t, g.Connect(p2, sink))
	require.NoError(t, g.Start())

	// Topological order runs producers before consumers, so one tick carries
	// the buffer all the way through.
	require.NoError(t, g.ProcessOnce())
	assert.Equal(t, []string{"p1", "p2"}, order)
	assert.Len(t, bufSink.Buffers(), 1)

	require.NoError(t, g.Stop())
}

func TestEndToEndSilencePipeline(t *testing.T) {
	logger := newTestLogger(t)
	g := New(logger)

	silence := sources.NewSilenceSource(logger, mono16k, 160)
	volume := processors.NewVolumeControl(logger, mono16k, 1.0)
	bufSink := sinks.NewBufferSink(logger, 200)

	src, err := g.AddSource(silence)
	require.NoError(t, err)
	vol, err := g.AddProcessor(volume)
	require.NoError(t, err)
	sink, err := g.AddSink(bufSink)
	require.NoError(t, err)
	require.NoError(t, g.Connect(src, vol))
	require.NoError(t, g.Connect(vol, sink))

	require.NoError(t, g.Start())
	for i := 0; i < 100; i++ {
		require.NoError(t, g.ProcessOnce())
	}
	require.NoError(t, g.Stop())

	assert.Equal(t, StateIdle, g.State())
	assert.Len(t, bufSink.Buffers(), 100)
	assert.Equal(t, uint64(100), silence.Stats().BuffersProduced)
	assert.Equal(t, uint64(100), bufSink.Stats().BuffersWritten)
}

func TestEndToEndWavRecording(t *testing.T) {
	logger := newTestLogger(t)
	g := New(logger)

	format := audio.Format{SampleRate: 16000, Channels: 1, SampleFormat: audio.SampleFormatI16}
	path := filepath.Join(t.TempDir(), "out.wav")

	silence := sources.NewSilenceSource(logger, format, 160)
	volume := processors.NewVolumeControl(logger, format, 0.5)
	wav, err := sinks.NewWavEncoderSink(logger, path, format)
	require.NoError(t, err)

	src, err := g.AddSource(silence)
	require.NoError(t, err)
	vol, err := g.AddProcessor(volume)
	require.NoError(t, err)
	sink, err := g.AddSink(wav)
	require.NoError(t, err)
	require.NoError(t, g.Connect(src, vol))
	require.NoError(t, g.Connect(vol, sink))

	require.NoError(t, g.Start())
	for i := 0; i < 100; i++ {
		require.NoError(t, g.ProcessOnce())
	}
	require.NoError(t, g.Stop())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, 44+100*160*2, len(raw), "header plus one hundred 160-frame i16 buffers")

	assert.Equal(t, "RIFF", string(raw[0:4]))
	assert.Equal(t, "WAVE", string(raw[8:12]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(raw[20:22]), "PCM format tag")
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(raw[22:24]), "channel count")
	assert.Equal(t, uint32(16000), binary.LittleEndian.Uint32(raw[24:28]), "sample rate")
	assert.Equal(t, uint16(16), binary.LittleEndian.Uint16(raw[34:36]), "bit depth")
	assert.Equal(t, uint32(100*160*2), binary.LittleEndian.Uint32(raw[40:44]), "data chunk size")

	for i, b := range raw[44:] {
		if b != 0 {
			t.Fatalf("sample byte %d is %#x, silence through gain 0.5 must stay zero", i, b)
		}
	}
}

func TestStalledInputBackpressure(t *testing.T) {
	logger := newTestLogger(t)
	g := New(logger)

	// One live leg and one dead leg into a mixer: the mixer stalls on the
	// empty input, the live leg's queue fills, and overflow drops are charged
	// to the producing node.
	live := sources.NewSilenceSource(logger, mono16k, 160)
	dead := &stubSource{}
	mixer, err := processors.NewMixer(logger, mono16k, []float64{1.0, 1.0})
	require.NoError(t, err)

	liveID, err := g.AddSource(live)
	require.NoError(t, err)
	deadID, err := g.AddSource(dead)
	require.NoError(t, err)
	mixID, err := g.AddProcessor(mixer)
	require.NoError(t, err)
	sinkID, err := g.AddSink(sinks.NewNullSink())
	require.NoError(t, err)
	require.NoError(t, g.Connect(liveID, mixID))
	require.NoError(t, g.Connect(deadID, mixID))
	require.NoError(t, g.Connect(mixID, sinkID))

	require.NoError(t, g.Start())
	for i := 0; i < DefaultQueueCapacity+4; i++ {
		require.NoError(t, g.ProcessOnce())
	}

	stats := g.Stats()
	liveStats := stats[liveID]
	assert.Equal(t, uint64(DefaultQueueCapacity), liveStats.Queued, "queue holds its capacity")
	assert.Equal(t, uint64(4), liveStats.QueueDrops, "excess buffers dropped")
	assert.Equal(t, uint64(0), stats[mixID].Processor.BuffersProcessed, "mixer never ready")
	assert.Equal(t, uint64(0), stats[deadID].QueueDrops)

	require.NoError(t, g.Stop())
}

func TestQueueCapacityOption(t *testing.T) {
	logger := newTestLogger(t)
	g := New(logger, WithQueueCapacity(2), WithOverflowPolicy(DropOldest))

	live := sources.NewSilenceSource(logger, mono16k, 160)
	dead := &stubSource{}
	mixer, err := processors.NewMixer(logger, mono16k, []float64{1.0, 1.0})
	require.NoError(t, err)

	liveID, err := g.AddSource(live)
	require.NoError(t, err)
	deadID, err := g.AddSource(dead)
	require.NoError(t, err)
	mixID, err := g.AddProcessor(mixer)
	require.NoError(t, err)
	sinkID, err := g.AddSink(sinks.NewNullSink())
	require.NoError(t, err)
	require.NoError(t, g.Connect(liveID, mixID))
	require.NoError(t, g.Connect(deadID, mixID))
	require.NoError(t, g.Connect(mixID, sinkID))

	require.NoError(t, g.Start())
	for i := 0; i < 5; i++ {
		require.NoError(t, g.ProcessOnce())
	}

	liveStats := g.Stats()[liveID]
	assert.Equal(t, uint64(2), liveStats.Queued)
	assert.Equal(t, uint64(3), liveStats.QueueDrops)

	require.NoError(t, g.Stop())
}

func TestSinkErrorMovesGraphToErrorState(t *testing.T) {
	g := New(newTestLogger(t))

	boom := errors.New("disk full")
	src, err := g.AddSource(&stubSource{buffers: []*audio.Buffer{testBuffer(t, 160)}})
	require.NoError(t, err)
	sink, err := g.AddSink(&failingSink{err: boom})
	require.NoError(t, err)
	require.NoError(t, g.Connect(src, sink))

	require.NoError(t, g.Start())
	assert.ErrorIs(t, g.ProcessOnce(), boom)
	assert.Equal(t, StateError, g.State())
	assert.ErrorIs(t, g.ProcessOnce(), ErrNotActive)

	// Teardown from error is best effort; the graph stays unusable.
	assert.NoError(t, g.Stop())
	assert.Equal(t, StateError, g.State())
	assert.ErrorIs(t, g.Start(), ErrNotIdle)
}

func TestStopFlushesLookAheadProcessors(t *testing.T) {
	logger := newTestLogger(t)
	g := New(logger)

	silence := sources.NewSilenceSource(logger, mono16k, 160)
	norm := processors.NewNormalizer(logger, mono16k, 0.9, 4.0)
	bufSink := sinks.NewBufferSink(logger, 16)

	src, err := g.AddSource(silence)
	require.NoError(t, err)
	normID, err := g.AddProcessor(norm)
	require.NoError(t, err)
	sink, err := g.AddSink(bufSink)
	require.NoError(t, err)
	require.NoError(t, g.Connect(src, normID))
	require.NoError(t, g.Connect(normID, sink))

	require.NoError(t, g.Start())
	for i := 0; i < 5; i++ {
		require.NoError(t, g.ProcessOnce())
	}
	// The normalizer's one-buffer look-ahead lags the source by one.
	assert.Len(t, bufSink.Buffers(), 4)

	require.NoError(t, g.Stop())
	assert.Len(t, bufSink.Buffers(), 5, "held buffer flushed on stop")
}

func TestFanOutSharesOneBuffer(t *testing.T) {
	logger := newTestLogger(t)
	g := New(logger)

	buf := testBuffer(t, 160)
	src, err := g.AddSource(&stubSource{buffers: []*audio.Buffer{buf}})
	require.NoError(t, err)
	left := sinks.NewBufferSink(logger, 4)
	right := sinks.NewBufferSink(logger, 4)
	leftID, err := g.AddSink(left)
	require.NoError(t, err)
	rightID, err := g.AddSink(right)
	require.NoError(t, err)
	require.NoError(t, g.Connect(src, leftID))
	require.NoError(t, g.Connect(src, rightID))

	require.NoError(t, g.Start())
	require.NoError(t, g.ProcessOnce())
	require.NoError(t, g.Stop())

	require.Len(t, left.Buffers(), 1)
	require.Len(t, right.Buffers(), 1)
	assert.Same(t, left.Buffers()[0], right.Buffers()[0], "fan-out shares, never copies")
}
