package transcript

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"TubeSage/pkg/xerr"
)

const sampleJSON3 = `{
	"events": [
		{"tStartMs": 0, "dDurationMs": 2000, "segs": [{"utf8": "hello "}, {"utf8": "world"}]},
		{"tStartMs": 2000, "dDurationMs": 1500, "segs": [{"utf8": "\n"}]},
		{"tStartMs": 3500, "dDurationMs": 2500, "segs": [{"utf8": "second line"}]}
	]
}`

func TestFetchManualTrack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("kind") == "asr" {
			t.Error("asr track requested even though manual track exists")
		}
		if r.URL.Query().Get("fmt") != "json3" {
			t.Errorf("unexpected fmt: %s", r.URL.Query().Get("fmt"))
		}
		_, _ = w.Write([]byte(sampleJSON3))
	}))
	defer srv.Close()

	src := NewYouTubeSource(srv.URL, "en", time.Second)
	tr, err := src.Fetch(context.Background(), "vid-1")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if tr.VideoID != "vid-1" {
		t.Errorf("unexpected video id: %s", tr.VideoID)
	}
	if len(tr.Segments) != 2 {
		t.Fatalf("expected 2 segments (newline event skipped), got %d", len(tr.Segments))
	}
	if tr.Segments[0].Text != "hello world" {
		t.Errorf("unexpected text: %q", tr.Segments[0].Text)
	}
	if tr.Segments[0].StartMs != 0 || tr.Segments[0].DurationMs != 2000 {
		t.Errorf("unexpected timing: %+v", tr.Segments[0])
	}
	if tr.Segments[1].StartMs != 3500 {
		t.Errorf("unexpected second segment start: %d", tr.Segments[1].StartMs)
	}
}

func TestFetchFallsBackToASR(t *testing.T) {
	var asrRequested bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("kind") != "asr" {
			// 人工字幕轨不存在：返回空 body
			return
		}
		asrRequested = true
		_, _ = w.Write([]byte(sampleJSON3))
	}))
	defer srv.Close()

	src := NewYouTubeSource(srv.URL, "en", time.Second)
	tr, err := src.Fetch(context.Background(), "vid-2")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !asrRequested {
		t.Error("asr track never requested")
	}
	if len(tr.Segments) != 2 {
		t.Errorf("expected 2 segments from asr track, got %d", len(tr.Segments))
	}
}

func TestFetchNoTracksAtAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	src := NewYouTubeSource(srv.URL, "en", time.Second)
	_, err := src.Fetch(context.Background(), "vid-404")
	if err == nil {
		t.Fatal("expected error for missing subtitles")
	}
	if xerr.KindOf(err) != xerr.KindNotFound {
		t.Errorf("error kind = %s", xerr.KindOf(err))
	}
}

func TestFetchUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	src := NewYouTubeSource(srv.URL, "en", time.Second)
	_, err := src.Fetch(context.Background(), "vid-500")
	if err == nil {
		t.Fatal("expected error for upstream failure")
	}
	if xerr.KindOf(err) != xerr.KindTranscriptsUnavailable {
		t.Errorf("error kind = %s", xerr.KindOf(err))
	}
}

func TestFetchGarbageBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	src := NewYouTubeSource(srv.URL, "en", time.Second)
	_, err := src.Fetch(context.Background(), "vid-bad")
	if err == nil {
		t.Fatal("expected parse error")
	}
	if xerr.KindOf(err) != xerr.KindTranscriptsUnavailable {
		t.Errorf("error kind = %s", xerr.KindOf(err))
	}
}

func TestFetchEmptyVideoID(t *testing.T) {
	src := NewYouTubeSource("", "en", time.Second)
	_, err := src.Fetch(context.Background(), "  ")
	if err == nil {
		t.Fatal("expected validation error")
	}
	if xerr.KindOf(err) != xerr.KindBadRequest {
		t.Errorf("error kind = %s", xerr.KindOf(err))
	}
}
