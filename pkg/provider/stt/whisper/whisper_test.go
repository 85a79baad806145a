package whisper_test

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrWong99/voicenav/pkg/audio"
	"github.com/MrWong99/voicenav/pkg/provider/stt"
	"github.com/MrWong99/voicenav/pkg/provider/stt/whisper"
)

// newMockServer returns a whisper-server stand-in that replies with body and
// counts requests.
func newMockServer(t *testing.T, body any, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/inference" {
			w.WriteHeader(http.StatusOK)
			return
		}
		if calls != nil {
			calls.Add(1)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if got := r.FormValue("response_format"); got != "verbose_json" {
			http.Error(w, "unexpected response_format "+got, http.StatusBadRequest)
			return
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.Close()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func speechPCM(samples int) []byte {
	s := make([]int16, samples)
	for i := range s {
		s[i] = int16(8000 * math.Sin(float64(i)/8))
	}
	return audio.Int16ToPCM(s)
}

func TestNew_EmptyServerURL_ReturnsError(t *testing.T) {
	t.Parallel()
	if _, err := whisper.New(""); err == nil {
		t.Fatal("expected error for empty server URL, got nil")
	}
}

func TestTranscribe_SegmentsAndConfidence(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := newMockServer(t, map[string]any{
		"text": "hey maya open google",
		"segments": []map[string]any{
			{"text": " hey maya", "avg_logprob": math.Log(0.9)},
			{"text": " [BLANK_AUDIO]", "avg_logprob": math.Log(0.1)},
			{"text": " open google", "avg_logprob": math.Log(0.7)},
		},
	}, &calls)

	p, err := whisper.New(srv.URL, whisper.WithLanguage("en"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := p.Transcribe(context.Background(), speechPCM(1600), stt.Config{SampleRate: 16000})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Text != "hey maya open google" {
		t.Errorf("Text = %q, want %q", res.Text, "hey maya open google")
	}
	if !res.HasConfidence {
		t.Fatal("expected confidence to be reported")
	}
	if math.Abs(res.Confidence-0.8) > 1e-9 {
		t.Errorf("Confidence = %f, want 0.8", res.Confidence)
	}
	if calls.Load() != 1 {
		t.Errorf("server calls = %d, want 1", calls.Load())
	}
}

func TestTranscribe_PlainTextResponse_NoConfidence(t *testing.T) {
	t.Parallel()
	srv := newMockServer(t, map[string]any{"text": "  scroll down \n"}, nil)
	p, _ := whisper.New(srv.URL)

	res, err := p.Transcribe(context.Background(), speechPCM(1600), stt.Config{})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Text != "scroll down" {
		t.Errorf("Text = %q, want %q", res.Text, "scroll down")
	}
	if res.HasConfidence {
		t.Error("expected no confidence for a plain text response")
	}
}

func TestTranscribe_EmptyAudio_SkipsServer(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := newMockServer(t, map[string]any{"text": "ghost"}, &calls)
	p, _ := whisper.New(srv.URL)

	res, err := p.Transcribe(context.Background(), nil, stt.Config{})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Text != "" || calls.Load() != 0 {
		t.Errorf("got text %q with %d calls, want empty result and no calls", res.Text, calls.Load())
	}
}

func TestTranscribe_ServerError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	p, _ := whisper.New(srv.URL)

	if _, err := p.Transcribe(context.Background(), speechPCM(160), stt.Config{}); err == nil {
		t.Fatal("expected error for HTTP 500")
	}
}

func TestTranscribe_DeadlineMapsToInferenceTimeout(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()
	p, _ := whisper.New(srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := p.Transcribe(ctx, speechPCM(160), stt.Config{})
	if !errors.Is(err, stt.ErrInferenceTimeout) {
		t.Fatalf("got %v, want ErrInferenceTimeout", err)
	}
}

func TestPing(t *testing.T) {
	t.Parallel()
	srv := newMockServer(t, map[string]any{}, nil)
	p, _ := whisper.New(srv.URL)
	if err := p.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	dead, _ := whisper.New("http://127.0.0.1:1")
	if err := dead.Ping(context.Background()); !errors.Is(err, stt.ErrModelLoad) {
		t.Fatalf("got %v, want ErrModelLoad", err)
	}
}
