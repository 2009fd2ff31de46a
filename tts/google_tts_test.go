package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSynthesizeText(t *testing.T) {
	t.Parallel()

	var got TTSRequest
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("key")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(TTSResponse{AudioContent: base64.StdEncoding.EncodeToString([]byte("ID3-audio"))})
	}))
	defer srv.Close()

	client, err := NewGoogleTTSClient("k&ey")
	if err != nil {
		t.Fatal(err)
	}
	audio, err := client.WithEndpoint(srv.URL).SynthesizeText(context.Background(), "Are you safe?")
	if err != nil {
		t.Fatalf("SynthesizeText: %v", err)
	}
	if string(audio) != "ID3-audio" {
		t.Errorf("audio = %q", audio)
	}
	if got.Input.Text != "Are you safe?" || got.AudioConfig.AudioEncoding != "MP3" {
		t.Errorf("request = %+v", got)
	}
	if gotKey != "k&ey" {
		t.Errorf("key = %q, want escaped round trip", gotKey)
	}
}

func TestSynthesizeTextAPIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client, _ := NewGoogleTTSClient("key")
	if _, err := client.WithEndpoint(srv.URL).SynthesizeText(context.Background(), "hi"); err == nil {
		t.Fatal("expected error on 429")
	}
}

func TestNewGoogleTTSClientRequiresKey(t *testing.T) {
	t.Parallel()
	if _, err := NewGoogleTTSClient(""); err == nil {
		t.Fatal("expected error without API key")
	}
}
