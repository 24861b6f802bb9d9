package api_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"clipper/internal/api"
	"clipper/internal/config"
	"clipper/internal/media/ffprobe"
	"clipper/internal/services"
	"clipper/internal/testsupport"
	"clipper/internal/upload"
	"clipper/internal/workflow"
)

type fakeUploader struct {
	mu      sync.Mutex
	paths   []string
	service upload.Service
	err     error
}

func (f *fakeUploader) Upload(_ context.Context, path string, service upload.Service) (upload.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, path)
	f.service = service
	if f.err != nil {
		return upload.Result{}, f.err
	}
	return upload.Result{Service: service, Path: path, URL: "https://files.example/abc.mp4", Size: 4, Attempts: 1}, nil
}

type harness struct {
	cfg    *config.Config
	mgr    *workflow.Manager
	up     *fakeUploader
	server *httptest.Server
	client *api.Client
}

func newHarness(t *testing.T, result ffprobe.Result, opts api.Options, cfgOpts ...testsupport.ConfigOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, cfgOpts...)
	mgr := workflow.NewManager(cfg, nil,
		workflow.WithProbe(testsupport.StaticProbe(result)),
		workflow.WithToolResolvers(nil, func(*config.Config) (string, error) { return "ffprobe", nil }),
	)
	up := &fakeUploader{}
	server := httptest.NewServer(api.NewHandler(mgr, up, opts))
	t.Cleanup(func() {
		server.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = mgr.Shutdown(ctx)
	})
	return &harness{
		cfg:    cfg,
		mgr:    mgr,
		up:     up,
		server: server,
		client: api.NewClient(server.URL, opts.Token),
	}
}

func (h *harness) source(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(testsupport.BaseDir(h.cfg), "media", name)
	testsupport.WriteFile(t, path, 512)
	return path
}

func waitDone(t *testing.T, client *api.Client, id string) []api.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	var (
		all   []api.Event
		after int
	)
	for {
		resp, err := client.Events(ctx, id, after, 2*time.Second)
		if err != nil {
			t.Fatalf("Events: %v", err)
		}
		all = append(all, resp.Events...)
		after = resp.Next
		if resp.Done {
			return all
		}
	}
}

func TestJobLifecycle(t *testing.T) {
	h := newHarness(t, testsupport.ProbeResult(90, 1920, 1080, []string{"aac"}, nil), api.Options{}, testsupport.WithStubbedFFmpeg())
	src := h.source(t, "trip.mkv")
	ctx := context.Background()

	probed, err := h.client.Probe(ctx, src)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if probed.Width != 1920 || len(probed.Audio) != 1 {
		t.Fatalf("source = %+v", probed)
	}

	created, err := h.client.CreateJob(ctx, api.JobRequest{Start: "00:05", End: "00:15"})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if created.Job == nil || created.JobID == "" {
		t.Fatalf("create response = %+v", created)
	}
	if created.Trim == nil || !created.Trim.Enabled || created.Trim.EndSeconds != 15 {
		t.Fatalf("trim = %+v", created.Trim)
	}

	events := waitDone(t, h.client, created.JobID)
	last := events[len(events)-1]
	if last.Type != "terminal" || last.Terminal == nil || last.Terminal.State != "succeeded" {
		t.Fatalf("last event = %+v", last)
	}

	deadline := time.Now().Add(5 * time.Second)
	var job *api.JobResponse
	for time.Now().Before(deadline) {
		job, err = h.client.Job(ctx, created.JobID)
		if err != nil {
			t.Fatalf("Job: %v", err)
		}
		if job.Outcome != nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if job.Outcome == nil || job.Outcome.Status != "success" {
		t.Fatalf("outcome = %+v", job.Outcome)
	}
	if !strings.HasSuffix(job.Outcome.Path, "trip-00m05s-00m15s-1920x1080-h264.mp4") {
		t.Fatalf("path = %q", job.Outcome.Path)
	}

	current, err := h.client.CurrentJob(ctx)
	if err != nil || current.JobID != created.JobID {
		t.Fatalf("CurrentJob = %+v, %v", current, err)
	}

	uploaded, err := h.client.Upload(ctx, api.UploadRequest{JobID: created.JobID, Service: "uguu"})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if uploaded.URL == "" || uploaded.Path != job.Outcome.Path || h.up.service != upload.ServiceUguu {
		t.Fatalf("upload = %+v via %s", uploaded, h.up.service)
	}
}

func TestCreateJobValidationError(t *testing.T) {
	h := newHarness(t, testsupport.ProbeResult(60, 1920, 1080, nil, nil), api.Options{}, testsupport.WithStubbedFFmpeg())
	src := h.source(t, "a.mkv")

	_, err := h.client.CreateJob(context.Background(), api.JobRequest{
		Source:  src,
		Options: api.ClipOptions{Codec: "vp9", Container: "mp4"},
	})
	var statusErr *api.StatusError
	if !errors.As(err, &statusErr) || statusErr.Status != http.StatusBadRequest {
		t.Fatalf("err = %v, want 400", err)
	}
	if statusErr.Body.Field != "container" || !errors.Is(err, services.ErrValidation) {
		t.Fatalf("body = %+v", statusErr.Body)
	}
}

func TestCreateJobEarlyOutcome(t *testing.T) {
	h := newHarness(t, testsupport.ProbeResult(60, 1920, 1080, nil, nil), api.Options{}, testsupport.WithMissingTools())
	src := h.source(t, "a.mkv")

	created, err := h.client.CreateJob(context.Background(), api.JobRequest{Source: src})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if created.Job != nil || created.Outcome == nil || created.Outcome.Kind != "MissingTool" {
		t.Fatalf("response = %+v", created)
	}

	_, err = h.client.Upload(context.Background(), api.UploadRequest{JobID: created.JobID})
	var statusErr *api.StatusError
	if !errors.As(err, &statusErr) || statusErr.Status != http.StatusConflict {
		t.Fatalf("upload err = %v, want 409", err)
	}
}

func TestBusyAndCancel(t *testing.T) {
	h := newHarness(t, testsupport.ProbeResult(60, 1920, 1080, nil, nil), api.Options{},
		testsupport.WithStubBinary("ffmpeg", testsupport.FFmpegSlowScript))
	src := h.source(t, "a.mkv")
	ctx := context.Background()

	created, err := h.client.CreateJob(ctx, api.JobRequest{Source: src})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	_, err = h.client.CreateJob(ctx, api.JobRequest{Source: src})
	var statusErr *api.StatusError
	if !errors.As(err, &statusErr) || statusErr.Status != http.StatusConflict || statusErr.Body.JobID != created.JobID {
		t.Fatalf("second CreateJob err = %v, want 409 busy", err)
	}

	status, err := h.client.Status(ctx)
	if err != nil || !status.Busy {
		t.Fatalf("Status = %+v, %v", status, err)
	}

	ack, err := h.client.Cancel(ctx, created.JobID)
	if err != nil || !ack.CancelPending {
		t.Fatalf("Cancel = %+v, %v", ack, err)
	}
	events := waitDone(t, h.client, created.JobID)
	last := events[len(events)-1]
	if last.Terminal == nil || last.Terminal.State != "cancelled" {
		t.Fatalf("last event = %+v", last)
	}
}

func TestUnknownJob(t *testing.T) {
	h := newHarness(t, testsupport.ProbeResult(60, 1920, 1080, nil, nil), api.Options{})
	ctx := context.Background()

	if _, err := h.client.Job(ctx, "missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("Job err = %v, want not found", err)
	}
	if _, err := h.client.Events(ctx, "missing", 0, 0); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("Events err = %v, want not found", err)
	}
	if _, err := h.client.CurrentJob(ctx); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("CurrentJob err = %v, want not found", err)
	}
}

func TestEventsRejectsBadCursor(t *testing.T) {
	h := newHarness(t, testsupport.ProbeResult(60, 1920, 1080, nil, nil), api.Options{}, testsupport.WithStubbedFFmpeg())
	src := h.source(t, "a.mkv")
	created, err := h.client.CreateJob(context.Background(), api.JobRequest{Source: src})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	resp, err := http.Get(h.server.URL + "/api/jobs/" + created.JobID + "/events?after=-1")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestTokenAuth(t *testing.T) {
	h := newHarness(t, testsupport.ProbeResult(60, 1920, 1080, nil, nil), api.Options{Token: "secret"})
	ctx := context.Background()

	anonymous := api.NewClient(h.server.URL, "")
	if _, err := anonymous.Status(ctx); !errors.Is(err, services.ErrPermission) {
		t.Fatalf("anonymous Status err = %v, want 401", err)
	}
	if _, err := anonymous.Health(ctx); err != nil {
		t.Fatalf("health should stay open: %v", err)
	}
	if _, err := h.client.Status(ctx); err != nil {
		t.Fatalf("authorized Status: %v", err)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := newHarness(t, testsupport.ProbeResult(60, 1920, 1080, nil, nil), api.Options{
		AllowedOrigins: []string{"http://localhost:5173"},
		Token:          "secret",
	})

	req, _ := http.NewRequest(http.MethodOptions, h.server.URL+"/api/jobs", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS: %v", err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("allow origin = %q", got)
	}
}

func TestHealthReportsChecks(t *testing.T) {
	h := newHarness(t, testsupport.ProbeResult(60, 1920, 1080, nil, nil), api.Options{}, testsupport.WithStubbedFFmpeg())

	health, err := h.client.Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Status != "ok" && health.Status != "degraded" {
		t.Fatalf("status = %q", health.Status)
	}
	if len(health.Checks) == 0 {
		t.Fatal("expected readiness checks")
	}
}
