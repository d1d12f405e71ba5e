package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"bibble/internal/adapter/repo"
	"bibble/internal/domain"
	"bibble/internal/generation"
	"bibble/internal/http/handlers"
	"bibble/internal/infra"
	"bibble/internal/storage"
)

type stubVideo struct {
	submitErr error
}

func (s *stubVideo) Submit(ctx context.Context, req domain.VideoRequest) (domain.JobHandle, error) {
	if s.submitErr != nil {
		return domain.JobHandle{}, s.submitErr
	}
	if err := req.Normalize().Validate(); err != nil {
		return domain.JobHandle{}, domain.Rejected("video: submit", err.Error())
	}
	return domain.JobHandle{ID: "task_9", Status: domain.JobStatusQueued}, nil
}

func (s *stubVideo) AwaitCompletion(ctx context.Context, h domain.JobHandle) (domain.JobHandle, error) {
	h.Status = domain.JobStatusSucceeded
	h.ResultRef = "gen_9"
	return h, nil
}

func (s *stubVideo) FetchResult(ctx context.Context, h domain.JobHandle) (*domain.Artifact, error) {
	return &domain.Artifact{Filename: h.ID + ".mp4", ContentType: "video/mp4", Data: []byte("mp4-bytes")}, nil
}

type stubEditor struct {
	got domain.EditRequest
	err error
}

func (s *stubEditor) Edit(ctx context.Context, req domain.EditRequest) (*domain.Artifact, error) {
	s.got = req
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Artifact{Filename: "edited.png", ContentType: "image/png", Data: []byte("png-bytes")}, nil
}

type harness struct {
	server *httptest.Server
	svc    *generation.Service
	editor *stubEditor
}

func newHarness(t *testing.T, video generation.VideoClient, editor *stubEditor, rateLimit int) *harness {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	opts := generation.Options{Jobs: repo.NewMemoryJobRepository(), Store: store, Video: video}
	if editor != nil {
		opts.Images = editor
	}
	svc, err := generation.NewService(opts)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	app := handlers.NewApp(svc, store, *infra.DiscardLogger())
	srv := httptest.NewServer(NewRouter(app, Options{RateLimitPerMinute: rateLimit}))
	t.Cleanup(func() {
		srv.Close()
		svc.Wait()
	})
	return &harness{server: srv, svc: svc, editor: editor}
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

type jobBody struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Status      string `json:"status"`
	RemoteID    string `json:"remote_id"`
	ArtifactURL string `json:"artifact_url"`
	Error       string `json:"error"`
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func TestHealth(t *testing.T) {
	h := newHarness(t, &stubVideo{}, nil, 0)
	resp, err := http.Get(h.server.URL + "/v1/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var body map[string]any
	decodeBody(t, resp, &body)
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" || body["video"] != true || body["images"] != false {
		t.Fatalf("unexpected health: %d %v", resp.StatusCode, body)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatalf("expected request id header")
	}
}

func TestVideoLifecycle(t *testing.T) {
	h := newHarness(t, &stubVideo{}, nil, 0)

	resp, err := http.Post(h.server.URL+"/v1/videos", "application/json", strings.NewReader(`{"prompt":"a cat on a skateboard","n_seconds":5}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	var created jobBody
	decodeBody(t, resp, &created)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	if created.Kind != "video" || created.RemoteID != "task_9" || created.ID == "" {
		t.Fatalf("unexpected job: %+v", created)
	}
	if resp.Header.Get("Location") != "/v1/jobs/"+created.ID {
		t.Fatalf("unexpected location %q", resp.Header.Get("Location"))
	}

	h.svc.Wait()

	resp, err = http.Get(h.server.URL + "/v1/jobs/" + created.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	var final jobBody
	decodeBody(t, resp, &final)
	if final.Status != "succeeded" || final.ArtifactURL != "/v1/artifacts/task_9.mp4" {
		t.Fatalf("unexpected final job: %+v", final)
	}

	resp, err = http.Get(h.server.URL + final.ArtifactURL)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(data) != "mp4-bytes" {
		t.Fatalf("unexpected download: %d %q", resp.StatusCode, data)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "video/mp4" {
		t.Fatalf("unexpected content type %q", ct)
	}
}

func TestVideoRejectedIsBadRequest(t *testing.T) {
	h := newHarness(t, &stubVideo{}, nil, 0)
	resp, err := http.Post(h.server.URL+"/v1/videos", "application/json", strings.NewReader(`{"prompt":"   "}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	var body errorBody
	decodeBody(t, resp, &body)
	if resp.StatusCode != http.StatusBadRequest || body.Error.Code != "request_rejected" {
		t.Fatalf("unexpected response: %d %+v", resp.StatusCode, body)
	}
}

func TestVideoUpstreamUnavailableIsBadGateway(t *testing.T) {
	video := &stubVideo{submitErr: &domain.RemoteError{Op: "video: submit", StatusCode: 503, Message: "overloaded", Kind: domain.ErrServiceUnavailable}}
	h := newHarness(t, video, nil, 0)
	resp, err := http.Post(h.server.URL+"/v1/videos", "application/json", strings.NewReader(`{"prompt":"cat"}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	var body errorBody
	decodeBody(t, resp, &body)
	if resp.StatusCode != http.StatusBadGateway || body.Error.Message != "overloaded" {
		t.Fatalf("unexpected response: %d %+v", resp.StatusCode, body)
	}
}

func TestVideoInvalidJSON(t *testing.T) {
	h := newHarness(t, &stubVideo{}, nil, 0)
	resp, err := http.Post(h.server.URL+"/v1/videos", "application/json", strings.NewReader(`{"prompt":`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestImagesNotConfigured(t *testing.T) {
	h := newHarness(t, &stubVideo{}, nil, 0)
	body, contentType := editForm(t, "hat", 1, false)
	resp, err := http.Post(h.server.URL+"/v1/images/edits", contentType, body)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
}

func editForm(t *testing.T, prompt string, images int, withMask bool) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	_ = w.WriteField("prompt", prompt)
	_ = w.WriteField("quality", "medium")
	for i := 0; i < images; i++ {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="image"; filename="in.png"`)
		h.Set("Content-Type", "image/png")
		part, _ := w.CreatePart(h)
		_, _ = part.Write([]byte{byte('a' + i)})
	}
	if withMask {
		part, _ := w.CreateFormFile("mask", "mask.png")
		_, _ = part.Write([]byte("m"))
	}
	_ = w.Close()
	return &buf, w.FormDataContentType()
}

func TestImagesEdit(t *testing.T) {
	h := newHarness(t, nil, &stubEditor{}, 0)
	body, contentType := editForm(t, "add a hat", 2, true)
	resp, err := http.Post(h.server.URL+"/v1/images/edits", contentType, body)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	var job jobBody
	decodeBody(t, resp, &job)
	if resp.StatusCode != http.StatusCreated || job.Status != "succeeded" || job.ArtifactURL != "/v1/artifacts/edited.png" {
		t.Fatalf("unexpected response: %d %+v", resp.StatusCode, job)
	}
	got := h.editor.got
	if len(got.Images) != 2 || string(got.Images[0]) != "a" || string(got.Images[1]) != "b" {
		t.Fatalf("images not forwarded in order: %q", got.Images)
	}
	if string(got.Mask) != "m" || got.Quality != "medium" || got.Prompt != "add a hat" {
		t.Fatalf("unexpected forwarded request: %+v", got)
	}
}

func TestImagesEditIndexedImageKeys(t *testing.T) {
	h := newHarness(t, nil, &stubEditor{}, 0)
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	_ = w.WriteField("prompt", "merge")
	for _, p := range []struct{ key, data string }{{"image[10]", "c"}, {"image[1]", "b"}, {"image[0]", "a"}} {
		part, _ := w.CreateFormFile(p.key, p.key+".png")
		_, _ = part.Write([]byte(p.data))
	}
	_ = w.Close()

	resp, err := http.Post(h.server.URL+"/v1/images/edits", w.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	got := h.editor.got.Images
	if len(got) != 3 || string(got[0]) != "a" || string(got[1]) != "b" || string(got[2]) != "c" {
		t.Fatalf("indexed images not forwarded in index order: %q", got)
	}
}

func TestImagesEditRequiresImage(t *testing.T) {
	h := newHarness(t, nil, &stubEditor{}, 0)
	body, contentType := editForm(t, "hat", 0, false)
	resp, err := http.Post(h.server.URL+"/v1/images/edits", contentType, body)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestImagesEditMaskMismatch(t *testing.T) {
	editor := &stubEditor{err: &domain.RemoteError{Op: "image: edit", StatusCode: 400, Message: "mask size mismatch", Kind: domain.ErrRequestRejected}}
	h := newHarness(t, nil, editor, 0)
	body, contentType := editForm(t, "hat", 1, true)
	resp, err := http.Post(h.server.URL+"/v1/images/edits", contentType, body)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	var eb errorBody
	decodeBody(t, resp, &eb)
	if resp.StatusCode != http.StatusBadRequest || eb.Error.Message != "mask size mismatch" {
		t.Fatalf("unexpected response: %d %+v", resp.StatusCode, eb)
	}
}

func TestUnknownJobAndArtifact(t *testing.T) {
	h := newHarness(t, &stubVideo{}, nil, 0)
	for _, path := range []string{"/v1/jobs/nope", "/v1/artifacts/missing.mp4"} {
		resp, err := http.Get(h.server.URL + path)
		if err != nil {
			t.Fatalf("get %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", path, resp.StatusCode)
		}
	}
}

func TestGenerationRoutesAreRateLimited(t *testing.T) {
	h := newHarness(t, &stubVideo{}, nil, 1)
	post := func() int {
		resp, err := http.Post(h.server.URL+"/v1/videos", "application/json", strings.NewReader(`{"prompt":"cat"}`))
		if err != nil {
			t.Fatalf("post: %v", err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}
	if code := post(); code != http.StatusAccepted {
		t.Fatalf("first request: expected 202, got %d", code)
	}
	if code := post(); code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", code)
	}

	resp, err := http.Get(h.server.URL + "/v1/healthz")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health should not be rate limited, got %d", resp.StatusCode)
	}
}
