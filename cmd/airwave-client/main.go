// Command airwave-client connects to a stream server and plays its
// audio in sync with every other connected client.
package main

import (
	"context"
	"log"
	"net"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/airwave-audio/airwave-go/internal/client"
	"github.com/airwave-audio/airwave-go/internal/config"
	"github.com/airwave-audio/airwave-go/internal/discovery"
	"github.com/airwave-audio/airwave-go/internal/transport"
)

func main() {
	cfg, err := config.LoadClientConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	serverAddr := cfg.ServerAddr
	if serverAddr == "" {
		serverAddr = discoverServer()
		if serverAddr == "" {
			log.Fatal("no server address configured and none discovered via mDNS")
		}
	}

	hostname, _ := os.Hostname()
	name := cfg.Name
	if name == "" {
		name = hostname
	}

	sess, err := transport.DialTCP(serverAddr)
	if err != nil {
		log.Fatalf("connect to %s: %v", serverAddr, err)
	}

	c := client.New(client.Config{
		HostName: name,
		Version:  "1.0",
		OS:       runtime.GOOS,
		Arch:     runtime.GOARCH,
		Instance: 1,
	}, sess)

	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Printf("[airwave-client] shutting down")
		cancel()
	}()

	log.Printf("[airwave-client] connecting to %s as %q", serverAddr, name)
	if err := c.Run(ctx); err != nil {
		log.Printf("[airwave-client] connection closed: %v", err)
	}
}

// discoverServer browses mDNS for up to three seconds and returns the
// first server found, or "" if none appeared in time.
func discoverServer() string {
	mgr := discovery.NewManager(discovery.Config{ServiceName: "airwave-client"})
	if err := mgr.Browse(); err != nil {
		log.Printf("[airwave-client] mDNS browse failed: %v", err)
		return ""
	}
	defer mgr.Stop()

	select {
	case info := <-mgr.Servers():
		return net.JoinHostPort(info.Host, strconv.Itoa(info.Port))
	case <-time.After(3 * time.Second):
		return ""
	}
}
