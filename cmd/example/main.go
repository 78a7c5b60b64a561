// Package main provides a basic example of using the nimbus server core.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/onionhammer/nimbus/pkg/nimbus"
)

func main() {
	var (
		addr       = flag.String("addr", "", "listen address (overrides config file)")
		configPath = flag.String("config", "", "optional TOML config file")
		traced     = flag.Bool("trace", false, "wrap the handler with OpenTelemetry tracing")
	)
	flag.Parse()

	config := nimbus.DefaultConfig()
	if *configPath != "" {
		loaded, err := nimbus.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		config = loaded
	}
	if *addr != "" {
		config.Addr = *addr
	}
	config.Logger = log.New(os.Stderr, "nimbus ", log.LstdFlags)

	var handler nimbus.Handler = nimbus.HandlerFunc(greet)
	if *traced {
		handler = nimbus.Tracing(handler)
	}

	server := nimbus.New(config)
	if err := server.ListenAndServe(handler); err != nil {
		log.Fatalf("start server: %v", err)
	}

	// Wait for interrupt signal to gracefully shut down
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

// greet answers every assembled request with a single pre-rendered buffer.
func greet(_ context.Context, w nimbus.ResponseSender, req *nimbus.Request) error {
	body := fmt.Sprintf("hello %s %s from %s\n", req.Method, req.Path, w.Peer())
	resp := fmt.Sprintf(
		"HTTP/1.1 200 OK\r\ncontent-type: text/plain\r\ncontent-length: %d\r\n\r\n%s",
		len(body), body,
	)
	return w.Send([]byte(resp))
}
