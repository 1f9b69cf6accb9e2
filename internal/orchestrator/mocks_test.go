package orchestrator

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/valpere/cloudtran/internal/api"
	"github.com/valpere/cloudtran/internal/poller"
	"github.com/valpere/cloudtran/internal/store"
	"github.com/valpere/cloudtran/internal/translator"
	"github.com/valpere/cloudtran/internal/upload"
)

type mockService struct {
	nameVal       string
	translateFunc func(ctx context.Context, req translator.TranslateRequest) (*translator.ServiceResult, error)
	callCount     atomic.Int32
}

func (m *mockService) Name() string { return m.nameVal }

func (m *mockService) Translate(ctx context.Context, req translator.TranslateRequest) (*translator.ServiceResult, error) {
	m.callCount.Add(1)
	if m.translateFunc != nil {
		return m.translateFunc(ctx, req)
	}
	return &translator.ServiceResult{ServiceName: m.nameVal, TranslatedText: "mock result"}, nil
}

func (m *mockService) IsAvailable(ctx context.Context) error { return nil }

func (m *mockService) SupportedLanguages(ctx context.Context) ([]string, error) {
	return []string{"en", "hi"}, nil
}

type mockBackend struct {
	mu    sync.Mutex
	calls []string

	uploadURLFunc func(ctx context.Context, req api.UploadURLRequest) (*api.UploadTarget, error)
	uploadFunc    func(ctx context.Context, target api.UploadTarget, body []byte) error
	startFunc     func(ctx context.Context, req api.DocumentRequest) (*api.JobHandle, error)
	statusFunc    func(ctx context.Context, jobID string) (*api.Job, error)

	uploadedBody []byte
	uploadedMIME string
	startReq     api.DocumentRequest
}

func (m *mockBackend) record(call string) {
	m.mu.Lock()
	m.calls = append(m.calls, call)
	m.mu.Unlock()
}

func (m *mockBackend) callList() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *mockBackend) GetUploadURL(ctx context.Context, req api.UploadURLRequest) (*api.UploadTarget, error) {
	m.record("upload_url")
	if m.uploadURLFunc != nil {
		return m.uploadURLFunc(ctx, req)
	}
	return &api.UploadTarget{UploadURL: "https://bucket.test/" + req.FileName + "?sig=1", MIMEType: upload.MIMEDocx}, nil
}

func (m *mockBackend) Upload(ctx context.Context, target api.UploadTarget, body io.Reader, size int64) error {
	m.record("upload")
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.uploadedBody = data
	m.uploadedMIME = target.MIMEType
	m.mu.Unlock()
	if m.uploadFunc != nil {
		return m.uploadFunc(ctx, target, data)
	}
	return nil
}

func (m *mockBackend) StartDocumentJob(ctx context.Context, req api.DocumentRequest) (*api.JobHandle, error) {
	m.record("start_job")
	m.mu.Lock()
	m.startReq = req
	m.mu.Unlock()
	if m.startFunc != nil {
		return m.startFunc(ctx, req)
	}
	return &api.JobHandle{JobID: "job-1"}, nil
}

func (m *mockBackend) CheckStatus(ctx context.Context, jobID string) (*api.Job, error) {
	m.record("check_status")
	if m.statusFunc != nil {
		return m.statusFunc(ctx, jobID)
	}
	return &api.Job{JobID: jobID, Status: api.StatusCompleted, DownloadURL: "https://x/y"}, nil
}

type mockCache struct {
	mu      sync.Mutex
	entries map[string]string
	saves   int
}

func newMockCache() *mockCache {
	return &mockCache{entries: make(map[string]string)}
}

func (c *mockCache) GetCachedTranslation(ctx context.Context, sourceText, targetLang, service string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	text, ok := c.entries[sourceText+"|"+targetLang+"|"+service]
	return text, ok, nil
}

func (c *mockCache) SaveToMemory(ctx context.Context, sourceText, sourceLang, targetLang, finalText, service string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[sourceText+"|"+targetLang+"|"+service] = finalText
	c.saves++
	return nil
}

type mockHistory struct {
	mu      sync.Mutex
	saved   []store.JobRecord
	updates []store.JobUpdate
}

func (h *mockHistory) SaveJob(ctx context.Context, rec *store.JobRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.saved = append(h.saved, *rec)
	return nil
}

func (h *mockHistory) UpdateJob(ctx context.Context, jobID string, u store.JobUpdate) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.updates = append(h.updates, u)
	return nil
}

func (h *mockHistory) last() (store.JobUpdate, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.updates) == 0 {
		return store.JobUpdate{}, false
	}
	return h.updates[len(h.updates)-1], true
}

type manualTicker struct {
	ch      chan time.Time
	stopped atomic.Bool
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }
func (t *manualTicker) Stop()               { t.stopped.Store(true) }

type tickers struct {
	created chan *manualTicker
}

func newTickers() *tickers {
	return &tickers{created: make(chan *manualTicker, 8)}
}

func (f *tickers) New(time.Duration) poller.Ticker {
	t := &manualTicker{ch: make(chan time.Time)}
	f.created <- t
	return t
}

func docxDocument() *upload.Document {
	body := append([]byte("PK\x03\x04"), make([]byte, 32)...)
	return &upload.Document{Name: "report.docx", MIMEType: upload.MIMEDocx, Size: int64(len(body)), Body: body}
}
