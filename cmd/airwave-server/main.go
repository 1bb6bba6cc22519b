// Command airwave-server runs a stream server: it accepts client
// sessions over TCP, performs the handshake, and streams one or more
// audio sources to every subscriber in sync.
package main

import (
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/airwave-audio/airwave-go/internal/config"
	"github.com/airwave-audio/airwave-go/internal/discovery"
	"github.com/airwave-audio/airwave-go/internal/server"
	"github.com/airwave-audio/airwave-go/internal/transport"
	"github.com/airwave-audio/airwave-go/pkg/audio"
)

func main() {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	format := audio.SampleFormat{Rate: cfg.SampleRate, Bits: cfg.BitDepth, Channels: cfg.Channels}
	srv := server.New(server.Config{
		BufferMs:     cfg.BufferMs,
		DefaultCodec: cfg.DefaultCodec,
		SampleFormat: format,
	})

	source, err := server.NewFileSource(cfg.AudioFile, format)
	if err != nil {
		log.Fatalf("audio source: %v", err)
	}
	if err := srv.AddEngine(server.DefaultStreamID, source, cfg.DefaultCodec); err != nil {
		log.Fatalf("add engine: %v", err)
	}

	ln, err := transport.ListenTCP(cfg.ListenAddr)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	log.Printf("[airwave-server] listening on %s, streaming %q via %s", cfg.ListenAddr, displayAudioFile(cfg.AudioFile), cfg.DefaultCodec)

	if cfg.EnableMDNS {
		mgr := discovery.NewManager(discovery.Config{ServiceName: cfg.ServiceName, Port: tcpPort(cfg.ListenAddr), ServerMode: true})
		if err := mgr.Advertise(); err != nil {
			log.Printf("[airwave-server] mDNS advertise failed: %v", err)
		} else {
			defer mgr.Stop()
		}
	}

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		log.Printf("[airwave-server] metrics on :9090/metrics")
		if err := http.ListenAndServe(":9090", mux); err != nil {
			log.Printf("[airwave-server] metrics server stopped: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Printf("[airwave-server] shutting down")
		srv.Close()
		os.Exit(0)
	}()

	if err := srv.Serve(ln); err != nil {
		log.Fatalf("serve: %v", err)
	}
}

func displayAudioFile(path string) string {
	if path == "" {
		return "test tone"
	}
	return path
}

func tcpPort(addr string) int {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0
	}
	return port
}
