package video

import (
	"context"
	"errors"
	"image"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/chenBenjamin97/smart-distancing/pkg/detector"
	"github.com/chenBenjamin97/smart-distancing/pkg/distancing"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(ioutil.Discard)
	return logrus.NewEntry(l)
}

var testConfig = Config{Resolution: image.Pt(640, 480), InferenceTimeout: 200 * time.Millisecond}

var twoPersons = []distancing.Detection{
	{ID: "1-0", BBox: [4]float64{0.10, 0.2, 0.15, 0.6}, Score: 0.9},
	{ID: "1-1", BBox: [4]float64{0.50, 0.2, 0.55, 0.6}, Score: 0.8},
}

type fakeBase struct{}

func (fakeBase) Name() string           { return "fake" }
func (fakeBase) InputSize() image.Point { return image.Pt(300, 300) }
func (fakeBase) Close() error           { return nil }

type syncFake struct {
	fakeBase
	dets  []distancing.Detection
	err   error
	calls int
}

func (f *syncFake) Detect(img gocv.Mat) ([]distancing.Detection, error) {
	f.calls++
	if img.Cols() != 300 || img.Rows() != 300 {
		return nil, errors.New("unexpected input size")
	}
	return f.dets, f.err
}

type asyncFake struct {
	fakeBase
	dets        []distancing.Detection
	silent      bool
	latency     time.Duration
	onInfer     func()
	mu          sync.Mutex
	dispatches  int
	inFlight    int
	maxInFlight int
}

func (f *asyncFake) Infer(_ gocv.Mat, done detector.Callback) {
	f.mu.Lock()
	f.dispatches++
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.mu.Unlock()
	if f.onInfer != nil {
		f.onInfer()
	}
	if f.silent {
		return
	}

	latency := f.latency
	if latency == 0 {
		latency = time.Millisecond
	}
	go func() {
		time.Sleep(latency)
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
		done(f.dets, nil)
	}()
}

type noCapability struct{ fakeBase }

type recordingConsumer struct {
	mu      sync.Mutex
	results []distancing.Result
	sizes   []image.Point
}

func (c *recordingConsumer) Update(frame gocv.Mat, res distancing.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, res)
	c.sizes = append(c.sizes, image.Pt(frame.Cols(), frame.Rows()))
}

func (c *recordingConsumer) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.results)
}

type fakeSource struct {
	frames []gocv.Mat
	closed bool
}

func (s *fakeSource) Read(m *gocv.Mat) bool {
	if len(s.frames) == 0 {
		return false
	}
	s.frames[0].CopyTo(m)
	s.frames[0].Close()
	s.frames = s.frames[1:]
	return true
}

func (s *fakeSource) IsOpened() bool { return !s.closed }
func (s *fakeSource) Close() error   { return nil }

func newFrame() gocv.Mat {
	return gocv.NewMatWithSize(720, 1280, gocv.MatTypeCV8UC3)
}

func newTestPipeline(t *testing.T, det detector.Detector, consumer Consumer) *Pipeline {
	t.Helper()
	cfg := distancing.DefaultConfig()
	post, err := distancing.NewPostProcessor(cfg)
	require.NoError(t, err)

	p, err := NewPipeline(testConfig, det, post, consumer, testLogger())
	require.NoError(t, err)
	return p
}

func TestProcessFrameWithSyncDetector(t *testing.T) {
	consumer := &recordingConsumer{}
	det := &syncFake{dets: twoPersons}
	p := newTestPipeline(t, det, consumer)

	frame := newFrame()
	defer frame.Close()

	ok, err := p.ProcessFrame(frame)
	require.NoError(t, err)
	assert.True(t, ok)

	require.Equal(t, 1, consumer.count())
	res := consumer.results[0]
	require.Len(t, res.Objects, 2)
	assert.Equal(t, image.Pt(640, 480), consumer.sizes[0])
	//scaled into display resolution
	assert.InDeltaSlice(t, []float64{64, 96, 96, 288}, res.Objects[0].BBoxReal[:], 1e-9)
	assert.Equal(t, 2, res.Distances.Len())
	assert.Equal(t, uint64(1), p.Processed())
	assert.Equal(t, 2, p.post.Tracker().Len())
}

func TestProcessFrameSkipsEmptyFrames(t *testing.T) {
	consumer := &recordingConsumer{}
	det := &syncFake{dets: twoPersons}
	p := newTestPipeline(t, det, consumer)

	empty := gocv.NewMat()
	defer empty.Close()

	ok, err := p.ProcessFrame(empty)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, consumer.count())
	assert.Zero(t, det.calls)
}

func TestFailedInferenceMeansNoDetections(t *testing.T) {
	consumer := &recordingConsumer{}
	p := newTestPipeline(t, &syncFake{dets: twoPersons, err: errors.New("boom")}, consumer)

	frame := newFrame()
	defer frame.Close()

	ok, err := p.ProcessFrame(frame)
	require.NoError(t, err)
	assert.True(t, ok)
	require.Equal(t, 1, consumer.count())
	assert.Empty(t, consumer.results[0].Objects)
}

func TestInvalidBoxesAreDropped(t *testing.T) {
	consumer := &recordingConsumer{}
	dets := append([]distancing.Detection{{ID: "1-9", BBox: [4]float64{0.9, 0.9, 0.1, 0.1}}}, twoPersons...)
	p := newTestPipeline(t, &syncFake{dets: dets}, consumer)

	frame := newFrame()
	defer frame.Close()

	_, err := p.ProcessFrame(frame)
	require.NoError(t, err)
	assert.Len(t, consumer.results[0].Objects, 2)
}

func TestAsyncDetectorIsSerialized(t *testing.T) {
	consumer := &recordingConsumer{}
	det := &asyncFake{dets: twoPersons}
	//each dispatch must see every earlier frame already delivered
	det.onInfer = func() {
		det.mu.Lock()
		n := det.dispatches
		det.mu.Unlock()
		assert.Equal(t, n-1, consumer.count())
	}
	p := newTestPipeline(t, det, consumer)

	src := &fakeSource{frames: []gocv.Mat{newFrame(), newFrame(), newFrame()}}
	require.NoError(t, p.Run(context.Background(), src))

	require.Equal(t, 3, consumer.count())
	first := consumer.results[0].Objects
	last := consumer.results[2].Objects
	require.Len(t, last, 2)
	assert.Equal(t, first[0].TrackID, last[0].TrackID)
	assert.Equal(t, first[1].TrackID, last[1].TrackID)
}

func TestInferenceTimeoutIsAbandoned(t *testing.T) {
	consumer := &recordingConsumer{}
	post, err := distancing.NewPostProcessor(distancing.DefaultConfig())
	require.NoError(t, err)
	cfg := testConfig
	cfg.InferenceTimeout = 10 * time.Millisecond
	p, err := NewPipeline(cfg, &asyncFake{silent: true}, post, consumer, testLogger())
	require.NoError(t, err)

	frame := newFrame()
	defer frame.Close()

	ok, err := p.ProcessFrame(frame)
	require.NoError(t, err)
	assert.True(t, ok)
	require.Equal(t, 1, consumer.count())
	assert.Empty(t, consumer.results[0].Objects)
	assert.Equal(t, uint64(1), p.abandoned)
	require.NotNil(t, p.pending)

	p.settle()
	assert.Nil(t, p.pending)
}

func TestSlowDetectorStaysSerialized(t *testing.T) {
	consumer := &recordingConsumer{}
	post, err := distancing.NewPostProcessor(distancing.DefaultConfig())
	require.NoError(t, err)
	cfg := testConfig
	cfg.InferenceTimeout = 10 * time.Millisecond
	det := &asyncFake{dets: twoPersons, latency: 50 * time.Millisecond}
	p, err := NewPipeline(cfg, det, post, consumer, testLogger())
	require.NoError(t, err)

	src := &fakeSource{frames: []gocv.Mat{newFrame(), newFrame(), newFrame(), newFrame()}}
	require.NoError(t, p.Run(context.Background(), src))

	//every frame still reaches the consumer, but frames arriving while one is in flight are not dispatched
	assert.Equal(t, 4, consumer.count())
	det.mu.Lock()
	defer det.mu.Unlock()
	assert.Equal(t, 1, det.maxInFlight)
	assert.Less(t, det.dispatches, 4)
	assert.Nil(t, p.pending)
}

func TestProcessImage(t *testing.T) {
	consumer := &recordingConsumer{}
	p := newTestPipeline(t, &syncFake{dets: twoPersons}, consumer)

	path := filepath.Join(t.TempDir(), "still.png")
	img := newFrame()
	require.True(t, gocv.IMWrite(path, img))
	img.Close()

	require.NoError(t, p.ProcessImage(path))
	require.Equal(t, 1, consumer.count())
	assert.Len(t, consumer.results[0].Objects, 2)

	err := p.ProcessImage(filepath.Join(t.TempDir(), "missing.png"))
	assert.ErrorIs(t, err, ErrFrameRead)
	assert.Equal(t, 1, consumer.count())
}

func TestRecorderResizesFrames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.avi")
	r, err := NewRecorder(path, 0, image.Pt(320, 240), 150, testLogger())
	require.NoError(t, err)

	frame := newFrame()
	defer frame.Close()
	r.Update(frame, distancing.Result{})
	assert.Equal(t, 1, r.written)
	require.NoError(t, r.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.NotZero(t, info.Size())
}

func TestRunRejectsUnavailableStream(t *testing.T) {
	p := newTestPipeline(t, &syncFake{}, &recordingConsumer{})

	err := p.Run(context.Background(), &fakeSource{closed: true})
	assert.ErrorIs(t, err, ErrStreamUnavailable)

	err = p.Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrStreamUnavailable)
}

func TestRunStopsOnCancel(t *testing.T) {
	consumer := &recordingConsumer{}
	p := newTestPipeline(t, &syncFake{dets: twoPersons}, consumer)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := &fakeSource{frames: []gocv.Mat{newFrame()}}
	defer src.frames[0].Close()
	require.NoError(t, p.Run(ctx, src))
	assert.Zero(t, consumer.count())
}

func TestNewPipelineValidation(t *testing.T) {
	post, err := distancing.NewPostProcessor(distancing.DefaultConfig())
	require.NoError(t, err)

	_, err = NewPipeline(testConfig, noCapability{}, post, &recordingConsumer{}, testLogger())
	assert.ErrorIs(t, err, detector.ErrUnsupportedDetector)

	_, err = NewPipeline(Config{}, &syncFake{}, post, &recordingConsumer{}, testLogger())
	assert.Error(t, err)

	_, err = NewPipeline(testConfig, &syncFake{}, nil, &recordingConsumer{}, testLogger())
	assert.Error(t, err)
}

func TestConsumersFanOut(t *testing.T) {
	a, b := &recordingConsumer{}, &recordingConsumer{}
	called := 0
	all := Consumers{a, b, ConsumerFunc(func(gocv.Mat, distancing.Result) { called++ })}

	frame := newFrame()
	defer frame.Close()
	all.Update(frame, distancing.Result{})

	assert.Equal(t, 1, a.count())
	assert.Equal(t, 1, b.count())
	assert.Equal(t, 1, called)
}
