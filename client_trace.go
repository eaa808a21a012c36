package offer

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net/http/httptrace"
)

// DefaultClientTrace returns a ClientTrace that logs connection setup and
// request progress at the given level. Unused callbacks can be set to nil
// by the caller.
func DefaultClientTrace(logger *slog.Logger, level slog.Level) *httptrace.ClientTrace {
	if logger == nil {
		panic("logger cannot be nil for DefaultClientTrace")
	}

	log := func(msg string, attrs ...slog.Attr) {
		logger.LogAttrs(context.Background(), level, msg, attrs...)
	}

	return &httptrace.ClientTrace{
		GetConn: func(hostPort string) {
			log("GetConn", slog.String("hostPort", hostPort))
		},

		GotConn: func(info httptrace.GotConnInfo) {
			remoteAddr := "nil"
			if info.Conn != nil {
				remoteAddr = info.Conn.RemoteAddr().String()
			}
			log("GotConn",
				slog.String("remoteAddr", remoteAddr),
				slog.Bool("reused", info.Reused),
				slog.Duration("idleTime", info.IdleTime),
			)
		},

		DNSDone: func(info httptrace.DNSDoneInfo) {
			addrs := make([]string, len(info.Addrs))
			for i, a := range info.Addrs {
				addrs[i] = a.String()
			}
			log("DNSDone", slog.Any("addrs", addrs), slog.Any("err", info.Err))
		},

		ConnectDone: func(network, addr string, err error) {
			log("ConnectDone",
				slog.String("network", network),
				slog.String("addr", addr),
				slog.Any("err", err),
			)
		},

		TLSHandshakeDone: func(state tls.ConnectionState, err error) {
			log("TLSHandshakeDone",
				slog.String("serverName", state.ServerName),
				slog.String("protocol", state.NegotiatedProtocol),
				slog.Any("err", err),
			)
		},

		WroteRequest: func(info httptrace.WroteRequestInfo) {
			log("WroteRequest", slog.Any("err", info.Err))
		},

		GotFirstResponseByte: func() {
			log("GotFirstResponseByte")
		},
	}
}
