package socket

import "time"

// Metrics receives protocol-level observations from a Socket. The
// monitor package provides a Prometheus-backed implementation; the
// default is a no-op.
type Metrics interface {
	FrameReceived(kind string)
	FrameSent(kind string)
	MalformedFrame()
	CallResolved(outcome string, latency time.Duration)
	SetPendingCalls(n int)
}

type nopMetrics struct{}

func (nopMetrics) FrameReceived(string)               {}
func (nopMetrics) FrameSent(string)                   {}
func (nopMetrics) MalformedFrame()                    {}
func (nopMetrics) CallResolved(string, time.Duration) {}
func (nopMetrics) SetPendingCalls(int)                {}
