// Package google provides a capture service backed by Google Cloud
// Speech-to-Text streaming recognition. Audio frames arrive through SendAudio,
// typically forwarded from the websocket bridge.
package google

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"voice-command-service/internal/observability/logging"
	"voice-command-service/internal/observability/metrics"
	"voice-command-service/internal/ports"
)

// ErrNotStreaming is returned by SendAudio when no stream is open.
var ErrNotStreaming = errors.New("no recognition stream open")

var errHalfClosed = errors.New("stream is half-closed")

// Config holds recognition settings and per-stream guardrails.
type Config struct {
	LanguageCode    string
	SampleRateHz    int32
	InterimResults  bool
	AudioEncoding   string
	SingleUtterance bool

	// MaxAudioBytes and MaxDuration bound a single stream. Zero disables.
	MaxAudioBytes int64
	MaxDuration   time.Duration
}

// DefaultConfig returns settings for Turkish voice commands.
func DefaultConfig() Config {
	return Config{
		LanguageCode:    "tr-TR",
		SampleRateHz:    16000,
		InterimResults:  true,
		AudioEncoding:   "LINEAR16",
		SingleUtterance: true,
		MaxAudioBytes:   5 * 1024 * 1024, // ~160 seconds at 16kHz 16-bit mono
		MaxDuration:     30 * time.Second,
	}
}

// recognizeStream is the subset of speechpb.Speech_StreamingRecognizeClient used here.
type recognizeStream interface {
	Send(*speechpb.StreamingRecognizeRequest) error
	Recv() (*speechpb.StreamingRecognizeResponse, error)
	CloseSend() error
}

type dialFunc func(ctx context.Context) (recognizeStream, error)

// stream is one open recognition stream.
type stream struct {
	id         string
	rs         recognizeStream
	cancel     context.CancelFunc
	life       lifecycle
	started    time.Time
	audioBytes atomic.Int64
	log        zerolog.Logger

	// sendMu orders Send and CloseSend, which must not run concurrently.
	sendMu     sync.Mutex
	halfClosed bool
}

// send writes req unless the stream has been half-closed.
func (s *stream) send(req *speechpb.StreamingRecognizeRequest) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.halfClosed {
		return errHalfClosed
	}
	return s.rs.Send(req)
}

// closeSend half-closes the stream once.
func (s *stream) closeSend() error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.halfClosed {
		return nil
	}
	s.halfClosed = true
	return s.rs.CloseSend()
}

// Capture implements ports.CaptureService over Google streaming recognition.
type Capture struct {
	cfg         Config
	dial        dialFunc
	closeClient func() error
	metrics     *metrics.Metrics
	streamSeq   atomic.Uint64

	mu       sync.Mutex
	listener ports.CaptureListener
	active   *stream
}

// New creates a Google capture service.
// Requires GOOGLE_APPLICATION_CREDENTIALS environment variable to be set.
func New(ctx context.Context, cfg Config, m *metrics.Metrics) (*Capture, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}
	c := newCapture(cfg, func(ctx context.Context) (recognizeStream, error) {
		return client.StreamingRecognize(ctx)
	}, m)
	c.closeClient = client.Close
	return c, nil
}

func newCapture(cfg Config, dial dialFunc, m *metrics.Metrics) *Capture {
	if m == nil {
		m = metrics.DefaultMetrics
	}
	return &Capture{cfg: cfg, dial: dial, metrics: m}
}

// SetListener implements ports.CaptureService.
func (c *Capture) SetListener(l ports.CaptureListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listener = l
}

// Start opens a recognition stream and sends the streaming config.
// It is a no-op while a stream is open. A stream that has reported its final
// transcript no longer counts as open.
func (c *Capture) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.active != nil {
		c.mu.Unlock()
		return nil
	}
	l := c.listener
	if l == nil {
		c.mu.Unlock()
		return &ports.CaptureError{Kind: ports.ErrorCaptureDeviceDenied, Err: errors.New("no listener registered")}
	}

	streamCtx, cancel := context.WithCancel(ctx)
	rs, err := c.dial(streamCtx)
	if err != nil {
		cancel()
		c.mu.Unlock()
		return &ports.CaptureError{Kind: classify(err), Err: fmt.Errorf("failed to open stream: %w", err)}
	}

	id := fmt.Sprintf("google-stream-%d", c.streamSeq.Add(1))
	s := &stream{
		id:      id,
		rs:      rs,
		cancel:  cancel,
		started: time.Now(),
		log:     logging.WithStream(id, "google"),
	}

	// Send streaming config as the first message
	err = s.send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:        parseAudioEncoding(c.cfg.AudioEncoding),
					SampleRateHertz: c.cfg.SampleRateHz,
					LanguageCode:    c.cfg.LanguageCode,
				},
				InterimResults:  c.cfg.InterimResults,
				SingleUtterance: c.cfg.SingleUtterance,
			},
		},
	})
	if err != nil {
		cancel()
		c.mu.Unlock()
		return &ports.CaptureError{Kind: classify(err), Err: fmt.Errorf("failed to send streaming config: %w", err)}
	}

	c.active = s
	c.mu.Unlock()

	s.log.Info().
		Str("languageCode", c.cfg.LanguageCode).
		Int32("sampleRateHz", c.cfg.SampleRateHz).
		Msg("Recognition stream opened")

	l.OnStart()
	go c.listen(s, l)
	return nil
}

// SendAudio forwards an audio frame to the open stream. A stream exceeding
// its limits is dropped and reported as ErrorUnknown.
func (c *Capture) SendAudio(ctx context.Context, audio []byte) error {
	c.mu.Lock()
	s, l := c.active, c.listener
	c.mu.Unlock()
	if s == nil {
		return ErrNotStreaming
	}

	total := s.audioBytes.Add(int64(len(audio)))
	if c.cfg.MaxAudioBytes > 0 && total > c.cfg.MaxAudioBytes {
		reason := fmt.Sprintf("max audio bytes exceeded: %d > %d", total, c.cfg.MaxAudioBytes)
		c.abort(s, l, reason)
		return fmt.Errorf("stream limit exceeded: %s", reason)
	}
	if elapsed := time.Since(s.started); c.cfg.MaxDuration > 0 && elapsed > c.cfg.MaxDuration {
		reason := fmt.Sprintf("max duration exceeded: %v > %v", elapsed.Round(time.Millisecond), c.cfg.MaxDuration)
		c.abort(s, l, reason)
		return fmt.Errorf("stream limit exceeded: %s", reason)
	}

	// Audio after the final transcript or the half-close is not needed.
	if s.life.current() != stateOpen {
		return nil
	}

	err := s.send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: audio,
		},
	})
	if errors.Is(err, errHalfClosed) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to send audio: %w", err)
	}
	c.metrics.RecordAudioSent(len(audio))
	return nil
}

// Stop closes the open stream. Nothing more is reported for it.
func (c *Capture) Stop() error {
	c.mu.Lock()
	s := c.active
	c.active = nil
	c.mu.Unlock()

	if s == nil {
		return nil
	}
	s.life.drop()
	err := s.closeSend()
	s.cancel()
	s.log.Info().Msg("Recognition stream stopped")
	return err
}

// Close stops any stream and releases the speech client.
func (c *Capture) Close() error {
	c.Stop()
	if c.closeClient != nil {
		return c.closeClient()
	}
	return nil
}

// listen receives recognition responses and reports them to l.
func (c *Capture) listen(s *stream, l ports.CaptureListener) {
	for {
		resp, err := s.rs.Recv()
		if err == nil && resp.GetError() != nil {
			err = status.ErrorProto(resp.GetError())
		}
		if err != nil {
			c.finish(s, l, err)
			return
		}

		if resp.GetSpeechEventType() == speechpb.StreamingRecognizeResponse_END_OF_SINGLE_UTTERANCE {
			// Half-close so the recognizer returns the final result and EOF.
			if err := s.closeSend(); err != nil {
				s.log.Debug().Err(err).Msg("CloseSend after end of utterance failed")
			}
		}

		for _, r := range resp.GetResults() {
			if len(r.GetAlternatives()) == 0 {
				continue
			}
			text := r.GetAlternatives()[0].GetTranscript()
			if r.GetIsFinal() {
				if err := s.life.final(); err != nil {
					s.log.Debug().Err(err).Str("state", s.life.current().String()).Msg("Final ignored")
					continue
				}
				// Free the capture for the next turn before reporting.
				c.detach(s)
				l.OnFinalResult(text)
				c.end(s, l)
			} else {
				if err := s.life.interim(); err != nil {
					continue
				}
				l.OnInterimResult(text)
			}
		}
	}
}

// finish ends the stream after Recv fails or returns EOF.
func (c *Capture) finish(s *stream, l ports.CaptureListener, err error) {
	c.detach(s)
	defer s.cancel()

	switch s.life.current() {
	case stateDropped, stateClosed:
		// Stopped or aborted; already reported.
		return
	case stateFinalReported:
		if s.life.close() {
			l.OnEnd()
		}
		return
	}

	if errors.Is(err, io.EOF) {
		s.life.close()
		s.log.Info().Msg("Stream ended without a final transcript")
		l.OnError(ports.ErrorNoSpeechDetected)
		l.OnEnd()
		return
	}

	if !s.life.drop() {
		return
	}
	kind := classify(err)
	s.log.Warn().Err(err).Str("kind", kind.String()).Msg("Recognition stream failed")
	l.OnError(kind)
	l.OnEnd()
}

// end closes s after its final transcript. The rest of the stream is
// drained silently.
func (c *Capture) end(s *stream, l ports.CaptureListener) {
	if !s.life.close() {
		// Stopped while the final was being reported.
		return
	}
	if err := s.closeSend(); err != nil {
		s.log.Debug().Err(err).Msg("CloseSend after final failed")
	}
	s.cancel()
	s.log.Info().Msg("Recognition stream ended after final transcript")
	l.OnEnd()
}

// abort drops s because it exceeded a limit.
func (c *Capture) abort(s *stream, l ports.CaptureListener, reason string) {
	if !s.life.drop() {
		return
	}
	c.detach(s)
	s.log.Warn().Str("reason", reason).Msg("Recognition stream dropped")
	if err := s.closeSend(); err != nil {
		s.log.Debug().Err(err).Msg("CloseSend on drop failed")
	}
	s.cancel()
	if l != nil {
		l.OnError(ports.ErrorUnknown)
		l.OnEnd()
	}
}

func (c *Capture) detach(s *stream) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == s {
		c.active = nil
	}
}

// classify maps a gRPC error from the recognizer to an ErrorKind.
func classify(err error) ports.ErrorKind {
	switch status.Code(err) {
	case codes.PermissionDenied, codes.Unauthenticated:
		return ports.ErrorPermissionDenied
	case codes.DeadlineExceeded, codes.OutOfRange:
		return ports.ErrorNoSpeechDetected
	default:
		return ports.ErrorUnknown
	}
}

// parseAudioEncoding converts an encoding name to the speechpb enum.
// Unknown names fall back to LINEAR16.
func parseAudioEncoding(encoding string) speechpb.RecognitionConfig_AudioEncoding {
	switch encoding {
	case "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW
	case "AMR":
		return speechpb.RecognitionConfig_AMR
	case "AMR_WB":
		return speechpb.RecognitionConfig_AMR_WB
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS
	case "SPEEX_WITH_HEADER_BYTE":
		return speechpb.RecognitionConfig_SPEEX_WITH_HEADER_BYTE
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS
	default:
		return speechpb.RecognitionConfig_LINEAR16
	}
}
