package config

import "testing"

func TestLoadServerConfigDefaults(t *testing.T) {
	cfg, err := LoadServerConfig()
	if err != nil {
		t.Fatalf("LoadServerConfig: %v", err)
	}
	if cfg.ListenAddr != ":1704" {
		t.Errorf("expected default listen addr :1704, got %q", cfg.ListenAddr)
	}
	if cfg.SampleRate != 48000 {
		t.Errorf("expected default sample rate 48000, got %d", cfg.SampleRate)
	}
	if cfg.DefaultCodec != "pcm" {
		t.Errorf("expected default codec pcm, got %q", cfg.DefaultCodec)
	}
}

func TestLoadClientConfigDefaults(t *testing.T) {
	cfg, err := LoadClientConfig()
	if err != nil {
		t.Fatalf("LoadClientConfig: %v", err)
	}
	if cfg.BufferMs != 1000 {
		t.Errorf("expected default buffer 1000ms, got %d", cfg.BufferMs)
	}
	if cfg.Volume != 100 {
		t.Errorf("expected default volume 100, got %d", cfg.Volume)
	}
	if cfg.Transport != "tcp" {
		t.Errorf("expected default transport tcp, got %q", cfg.Transport)
	}
}
