package handlers

import (
	"context"
	"image"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/pipeline"
	"github.com/kozaktomas/face-attendance/internal/recognition"
)

type staticCamera string

func (c staticCamera) Name() string { return string(c) }

func (c staticCamera) Next(context.Context) (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, 32, 24)), nil
}

type noFaces struct{}

func (noFaces) Process(_ context.Context, frame image.Image, prev recognition.State) (recognition.Result, recognition.State, error) {
	next := prev
	next.SkipNext = !prev.SkipNext
	next.Status = recognition.NoFace
	return recognition.Result{Frame: image.NewRGBA(frame.Bounds()), Status: recognition.NoFace}, next, nil
}

type noEvents struct{}

func (noEvents) Record(context.Context, string, recognition.Result) []attendance.Event { return nil }

func testSessions(t *testing.T, names ...string) *pipeline.Set {
	t.Helper()
	var sessions []*pipeline.Session
	for _, name := range names {
		sessions = append(sessions, pipeline.NewSession(staticCamera(name), noFaces{}, noEvents{}, nil, nil))
	}
	set, err := pipeline.NewSet(sessions...)
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	return set
}

func TestCamerasHandler_List(t *testing.T) {
	h := NewCamerasHandler(testSessions(t, "lobby", "entrance"))

	recorder := httptest.NewRecorder()
	h.List(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/cameras", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	var result []map[string]any
	parseJSONResponse(t, recorder, &result)
	if len(result) != 2 || result[0]["camera"] != "entrance" || result[1]["camera"] != "lobby" {
		t.Errorf("unexpected cameras: %+v", result)
	}
}

func TestCamerasHandler_Status(t *testing.T) {
	set := testSessions(t, "entrance")
	sess, _ := set.Get("entrance")
	if err := sess.Step(context.Background()); err != nil {
		t.Fatalf("Step: %v", err)
	}
	h := NewCamerasHandler(set)

	req := requestWithChiParams(httptest.NewRequest(http.MethodGet, "/api/v1/cameras/entrance/status", nil), map[string]string{"name": "entrance"})
	recorder := httptest.NewRecorder()
	h.Status(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	var result map[string]any
	parseJSONResponse(t, recorder, &result)
	if result["face_status"] != "no_face" || result["frames"] != float64(1) {
		t.Errorf("unexpected status: %v", result)
	}
}

func TestCamerasHandler_UnknownCamera(t *testing.T) {
	h := NewCamerasHandler(testSessions(t, "entrance"))

	for name, handler := range map[string]http.HandlerFunc{"status": h.Status, "video": h.Video, "raw": h.Raw} {
		t.Run(name, func(t *testing.T) {
			req := requestWithChiParams(httptest.NewRequest(http.MethodGet, "/video/garage", nil), map[string]string{"name": "garage"})
			recorder := httptest.NewRecorder()
			handler(recorder, req)

			assertStatusCode(t, recorder, http.StatusNotFound)
			assertJSONError(t, recorder, "camera not found")
		})
	}
}

func TestCamerasHandler_VideoWritesMJPEGPart(t *testing.T) {
	set := testSessions(t, "entrance")
	sess, _ := set.Get("entrance")
	if err := sess.Step(context.Background()); err != nil {
		t.Fatalf("Step: %v", err)
	}
	frame, _ := sess.Frame()
	h := NewCamerasHandler(set)

	ctx, cancel := context.WithCancel(context.Background())
	req := requestWithChiParams(httptest.NewRequest(http.MethodGet, "/video/entrance", nil).WithContext(ctx), map[string]string{"name": "entrance"})
	recorder := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		h.Video(recorder, req)
		close(done)
	}()
	cancel()
	<-done

	assertStatusCode(t, recorder, http.StatusOK)
	assertContentType(t, recorder, "multipart/x-mixed-replace; boundary=frame")

	body := recorder.Body.String()
	if !strings.HasPrefix(body, "--frame\r\nContent-Type: image/jpeg\r\n") {
		t.Fatalf("unexpected part header: %q", body[:min(len(body), 60)])
	}
	if !strings.Contains(body, string(frame)) {
		t.Error("part does not carry the latest frame")
	}
}
