package upload_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"clipper/internal/services"
	"clipper/internal/upload"
)

func writeClip(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(path, []byte(strings.Repeat("x", size)), 0o644); err != nil {
		t.Fatalf("write clip: %v", err)
	}
	return path
}

type sleepRecorder struct {
	delays []time.Duration
}

func (s *sleepRecorder) sleep(d time.Duration) { s.delays = append(s.delays, d) }

func TestUploadCatboxPostsForm(t *testing.T) {
	var gotReqType, gotName, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotReqType = r.FormValue("reqtype")
		file, header, err := r.FormFile("fileToUpload")
		if err != nil {
			t.Errorf("form file: %v", err)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		gotName = header.Filename
		gotBody = string(data)
		_, _ = io.WriteString(w, "https://files.catbox.moe/abc123.mp4\n")
	}))
	defer srv.Close()

	path := writeClip(t, 10)
	client := upload.NewClient(upload.WithEndpoint(upload.ServiceCatbox, srv.URL))
	res, err := client.Upload(context.Background(), path, upload.ServiceCatbox)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if res.URL != "https://files.catbox.moe/abc123.mp4" {
		t.Fatalf("url = %q", res.URL)
	}
	if res.Attempts != 1 || res.Size != 10 {
		t.Fatalf("result = %+v", res)
	}
	if gotReqType != "fileupload" || gotName != "clip.mp4" || gotBody != strings.Repeat("x", 10) {
		t.Fatalf("form: reqtype=%q name=%q body=%q", gotReqType, gotName, gotBody)
	}
}

func TestUploadUguuParsesJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, _, err := r.FormFile("files[]"); err != nil {
			t.Errorf("form file: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"success":true,"files":[{"url":"https://a.uguu.se/xyz.mp4"}]}`)
	}))
	defer srv.Close()

	client := upload.NewClient(upload.WithEndpoint(upload.ServiceUguu, srv.URL))
	res, err := client.Upload(context.Background(), writeClip(t, 4), upload.ServiceUguu)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if res.URL != "https://a.uguu.se/xyz.mp4" {
		t.Fatalf("url = %q", res.URL)
	}
}

func TestUploadRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, "https://temp.sh/ok/clip.mp4")
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	client := upload.NewClient(
		upload.WithEndpoint(upload.ServiceTempsh, srv.URL),
		upload.WithSleeper(rec.sleep),
		upload.WithRetryBackoff(100*time.Millisecond, time.Second),
	)
	res, err := client.Upload(context.Background(), writeClip(t, 4), upload.ServiceTempsh)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if res.Attempts != 3 {
		t.Fatalf("attempts = %d, want 3", res.Attempts)
	}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}
	if len(rec.delays) != len(want) || rec.delays[0] != want[0] || rec.delays[1] != want[1] {
		t.Fatalf("delays = %v, want %v", rec.delays, want)
	}
}

func TestUploadHonorsRetryAfter(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "2")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = io.WriteString(w, "https://files.catbox.moe/r.mp4")
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	client := upload.NewClient(
		upload.WithEndpoint(upload.ServiceCatbox, srv.URL),
		upload.WithSleeper(rec.sleep),
	)
	if _, err := client.Upload(context.Background(), writeClip(t, 4), upload.ServiceCatbox); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if len(rec.delays) != 1 || rec.delays[0] != 2*time.Second {
		t.Fatalf("delays = %v, want [2s]", rec.delays)
	}
}

func TestUploadDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		calls.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	client := upload.NewClient(
		upload.WithEndpoint(upload.ServiceCatbox, srv.URL),
		upload.WithSleeper(func(time.Duration) {}),
	)
	_, err := client.Upload(context.Background(), writeClip(t, 4), upload.ServiceCatbox)
	var uerr *upload.Error
	if !errors.As(err, &uerr) || uerr.Kind != upload.KindServer || uerr.Status != http.StatusBadRequest {
		t.Fatalf("err = %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
	if errors.Is(err, services.ErrValidation) {
		t.Fatal("server error should not be a validation error")
	}
}

func TestUploadBadResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		_, _ = io.WriteString(w, "<html>maintenance</html>")
	}))
	defer srv.Close()

	client := upload.NewClient(upload.WithEndpoint(upload.ServiceTempsh, srv.URL))
	_, err := client.Upload(context.Background(), writeClip(t, 4), upload.ServiceTempsh)
	if upload.KindOf(err) != upload.KindBadResponse {
		t.Fatalf("kind = %q (%v)", upload.KindOf(err), err)
	}
}

func TestUploadRejectsMissingAndOversizedFiles(t *testing.T) {
	client := upload.NewClient(upload.WithSizeLimit(upload.ServiceUguu, 8))

	_, err := client.Upload(context.Background(), filepath.Join(t.TempDir(), "gone.mp4"), upload.ServiceUguu)
	if upload.KindOf(err) != upload.KindFileMissing {
		t.Fatalf("missing: kind = %q", upload.KindOf(err))
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("missing file should map to validation: %v", err)
	}

	_, err = client.Upload(context.Background(), writeClip(t, 9), upload.ServiceUguu)
	if upload.KindOf(err) != upload.KindTooLarge {
		t.Fatalf("oversized: kind = %q", upload.KindOf(err))
	}
}

func TestUploadCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not be sent")
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	client := upload.NewClient(upload.WithEndpoint(upload.ServiceCatbox, srv.URL))
	_, err := client.Upload(ctx, writeClip(t, 4), upload.ServiceCatbox)
	if upload.KindOf(err) != upload.KindCancelled {
		t.Fatalf("kind = %q (%v)", upload.KindOf(err), err)
	}
}

func TestUploadAsyncDeliversOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		_, _ = io.WriteString(w, "https://temp.sh/a/clip.mp4")
	}))
	defer srv.Close()

	client := upload.NewClient(upload.WithEndpoint(upload.ServiceTempsh, srv.URL))
	ch := client.UploadAsync(context.Background(), writeClip(t, 4), upload.ServiceTempsh)
	res, ok := <-ch
	if !ok {
		t.Fatal("channel closed without a result")
	}
	if res.Err != nil || res.URL != "https://temp.sh/a/clip.mp4" {
		t.Fatalf("result = %+v", res)
	}
	if _, ok := <-ch; ok {
		t.Fatal("expected channel to close after one result")
	}
}

func TestParseService(t *testing.T) {
	cases := map[string]upload.Service{
		"catbox":  upload.ServiceCatbox,
		"UGUU":    upload.ServiceUguu,
		"temp.sh": upload.ServiceTempsh,
	}
	for in, want := range cases {
		got, err := upload.ParseService(in)
		if err != nil || got != want {
			t.Errorf("ParseService(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := upload.ParseService("dropbox"); err == nil {
		t.Error("expected error for unknown service")
	}
}
