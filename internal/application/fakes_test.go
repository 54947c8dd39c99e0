package application_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/LL4nc33/oidanice-inkonnect/internal/application"
	"github.com/LL4nc33/oidanice-inkonnect/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeCaptureStream struct {
	samples []int16
	onClose func()

	mu        sync.Mutex
	delivered bool
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeCaptureStream(samples []int16, onClose func()) *fakeCaptureStream {
	return &fakeCaptureStream{
		samples: samples,
		onClose: onClose,
		closed:  make(chan struct{}),
	}
}

func (s *fakeCaptureStream) Read() ([]int16, error) {
	s.mu.Lock()
	if !s.delivered {
		s.delivered = true
		out := s.samples
		s.mu.Unlock()
		return out, nil
	}
	s.mu.Unlock()

	<-s.closed
	return nil, io.EOF
}

func (s *fakeCaptureStream) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		if s.onClose != nil {
			s.onClose()
		}
	})
	return nil
}

type fakeCaptureDevice struct {
	samples []int16
	openErr error

	mu      sync.Mutex
	open    int
	maxOpen int
	opens   int
}

func (d *fakeCaptureDevice) Open(_ context.Context, _ application.AudioFormat) (application.CaptureStream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.openErr != nil {
		return nil, d.openErr
	}

	d.open++
	d.opens++
	if d.open > d.maxOpen {
		d.maxOpen = d.open
	}

	return newFakeCaptureStream(d.samples, func() {
		d.mu.Lock()
		d.open--
		d.mu.Unlock()
	}), nil
}

func (d *fakeCaptureDevice) openCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

func (d *fakeCaptureDevice) stats() (opens, maxOpen int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens, d.maxOpen
}

type fakeOutputStream struct {
	onStop func()
	once   sync.Once
}

func (s *fakeOutputStream) Stop() error {
	s.once.Do(s.onStop)
	return nil
}

type fakeOutputDevice struct {
	playErr error

	mu        sync.Mutex
	active    int
	maxActive int
	plays     int
}

func (d *fakeOutputDevice) Play(_ context.Context, _ []int16, _ int) (application.OutputStream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.playErr != nil {
		return nil, d.playErr
	}

	d.active++
	d.plays++
	if d.active > d.maxActive {
		d.maxActive = d.active
	}

	return &fakeOutputStream{onStop: func() {
		d.mu.Lock()
		d.active--
		d.mu.Unlock()
	}}, nil
}

func (d *fakeOutputDevice) stats() (plays, active, maxActive int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.plays, d.active, d.maxActive
}

type fakeDecoder struct {
	err error
}

func (d *fakeDecoder) Decode(_ []byte, _ domain.AudioFormat) ([]int16, int, error) {
	if d.err != nil {
		return nil, 0, d.err
	}
	return []int16{1, 2, 3}, 16000, nil
}

type fakeSessionAPI struct {
	createDelay time.Duration
	createErrs  []error
	session     domain.Session
	messages    []domain.Message
	total       int
	listErr     error
	list        []domain.Session
	updateErr   error
	deleteErr   error

	mu          sync.Mutex
	createCalls int
	listCalls   int
	titles      []string
	deleted     []string
}

func (a *fakeSessionAPI) CreateSession(_ context.Context, sourceLang, targetLang string, ttsEnabled bool) (domain.Session, error) {
	a.mu.Lock()
	a.createCalls++
	var err error
	if len(a.createErrs) > 0 {
		err = a.createErrs[0]
		a.createErrs = a.createErrs[1:]
	}
	a.mu.Unlock()

	if a.createDelay > 0 {
		time.Sleep(a.createDelay)
	}
	if err != nil {
		return domain.Session{}, err
	}

	s := a.session
	if s.ID == "" {
		s.ID = "11111111-1111-1111-1111-111111111111"
	}
	s.SourceLang = sourceLang
	s.TargetLang = targetLang
	s.TTSEnabled = ttsEnabled
	return s, nil
}

func (a *fakeSessionAPI) GetSession(_ context.Context, id string) (domain.Session, error) {
	s := a.session
	s.ID = id
	return s, nil
}

func (a *fakeSessionAPI) ListSessions(_ context.Context, _ int) ([]domain.Session, error) {
	a.mu.Lock()
	a.listCalls++
	a.mu.Unlock()
	if a.listErr != nil {
		return nil, a.listErr
	}
	return a.list, nil
}

func (a *fakeSessionAPI) UpdateSessionTitle(_ context.Context, _ string, title string) error {
	if a.updateErr != nil {
		return a.updateErr
	}
	a.mu.Lock()
	a.titles = append(a.titles, title)
	a.mu.Unlock()
	return nil
}

func (a *fakeSessionAPI) DeleteSession(_ context.Context, id string) error {
	if a.deleteErr != nil {
		return a.deleteErr
	}
	a.mu.Lock()
	a.deleted = append(a.deleted, id)
	a.mu.Unlock()
	return nil
}

func (a *fakeSessionAPI) GetMessages(_ context.Context, _ string) ([]domain.Message, int, error) {
	return a.messages, a.total, nil
}

func (a *fakeSessionAPI) createCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.createCalls
}

func (a *fakeSessionAPI) listCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.listCalls
}

func (a *fakeSessionAPI) updateTitles() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.titles))
	copy(out, a.titles)
	return out
}

type pipelineCall struct {
	blob      []byte
	settings  domain.PipelineSettings
	sessionID string
}

type fakePipeline struct {
	result domain.PipelineResult
	errs   []error

	// entered/release make the round trip observable and controllable from
	// tests; both are optional.
	entered chan struct{}
	release chan struct{}

	mu    sync.Mutex
	calls []pipelineCall
}

func (p *fakePipeline) Run(_ context.Context, blob []byte, settings domain.PipelineSettings, sessionID string) (domain.PipelineResult, error) {
	p.mu.Lock()
	p.calls = append(p.calls, pipelineCall{blob: blob, settings: settings, sessionID: sessionID})
	var err error
	if len(p.errs) > 0 {
		err = p.errs[0]
		p.errs = p.errs[1:]
	}
	p.mu.Unlock()

	if p.entered != nil {
		p.entered <- struct{}{}
	}
	if p.release != nil {
		<-p.release
	}

	if err != nil {
		return domain.PipelineResult{}, err
	}
	return p.result, nil
}

func (p *fakePipeline) callLog() []pipelineCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]pipelineCall, len(p.calls))
	copy(out, p.calls)
	return out
}

type fakeSettings struct {
	mu sync.Mutex
	s  domain.PipelineSettings
}

func (f *fakeSettings) Snapshot() domain.PipelineSettings {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.s
}

var errBackendDown = errors.New("backend down")
