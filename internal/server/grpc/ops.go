// Package grpcserver runs the operational gRPC endpoint: health checking of the
// backend process and, in dev mode, server reflection.
package grpcserver

import (
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name reported next to the overall "" entry.
const ServiceName = "noteskeeper"

// Checker reports whether the backend process can be invoked.
type Checker interface {
	Check() error
}

// Ops owns the gRPC server and the goroutine that keeps health status current.
type Ops struct {
	srv   *grpc.Server
	hs    *health.Server
	check Checker
	every time.Duration
	log   *zap.Logger

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewOps builds the ops server. Health starts NOT_SERVING until the first check passes.
func NewOps(check Checker, every time.Duration, dev bool, log *zap.Logger) *Ops {
	if every <= 0 {
		every = 10 * time.Second
	}
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			RecoverUnary(log),
			LoggingUnary(log),
		),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	if dev {
		reflection.Register(srv)
	}
	o := &Ops{
		srv:   srv,
		hs:    hs,
		check: check,
		every: every,
		log:   log,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	o.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	return o
}

// Serve starts the health watcher and blocks serving lis.
func (o *Ops) Serve(lis net.Listener) error {
	go o.watch()
	return o.srv.Serve(lis)
}

// Shutdown stops the watcher and drains the server, forcing a stop after timeout.
func (o *Ops) Shutdown(timeout time.Duration) {
	o.stopOnce.Do(func() { close(o.stop) })
	o.hs.Shutdown()

	drained := make(chan struct{})
	go func() {
		o.srv.GracefulStop()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(timeout):
		o.srv.Stop()
	}
}

// Wait blocks until the watcher goroutine has exited. Only valid after Serve.
func (o *Ops) Wait() { <-o.done }

func (o *Ops) watch() {
	defer close(o.done)
	t := time.NewTicker(o.every)
	defer t.Stop()

	o.probe()
	for {
		select {
		case <-o.stop:
			return
		case <-t.C:
			o.probe()
		}
	}
}

func (o *Ops) probe() {
	if err := o.check.Check(); err != nil {
		o.log.Warn("backend check failed", zap.Error(err))
		o.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
		return
	}
	o.setStatus(healthpb.HealthCheckResponse_SERVING)
}

func (o *Ops) setStatus(st healthpb.HealthCheckResponse_ServingStatus) {
	o.hs.SetServingStatus("", st)
	o.hs.SetServingStatus(ServiceName, st)
}
