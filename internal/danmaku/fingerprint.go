package danmaku

import (
	"bufio"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/http2"
)

// fingerprintTransport 使用Chrome的TLS指纹 部分平台会拦截Go默认的握手特征
type fingerprintTransport struct {
	dialer      *net.Dialer
	h2Transport *http2.Transport
}

func newFingerprintTransport() *fingerprintTransport {
	return &fingerprintTransport{
		dialer: &net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 60 * time.Second,
		},
		h2Transport: &http2.Transport{},
	}
}

func (t *fingerprintTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme != "https" {
		return http.DefaultTransport.RoundTrip(req)
	}

	addr := req.URL.Host
	if !strings.Contains(addr, ":") {
		addr = addr + ":443"
	}
	conn, err := t.dialer.DialContext(req.Context(), "tcp", addr)
	if err != nil {
		return nil, err
	}

	uConn := utls.UClient(conn, &utls.Config{ServerName: req.URL.Hostname()}, utls.HelloChrome_Auto)
	if err := uConn.HandshakeContext(req.Context()); err != nil {
		_ = conn.Close()
		return nil, err
	}

	if uConn.ConnectionState().NegotiatedProtocol == "h2" {
		h2Conn, err := t.h2Transport.NewClientConn(uConn)
		if err != nil {
			_ = conn.Close()
			return nil, err
		}
		resp, err := h2Conn.RoundTrip(req)
		if err != nil {
			_ = h2Conn.Close()
			return nil, err
		}
		resp.Body = &connCloser{ReadCloser: resp.Body, conn: h2Conn}
		return resp, nil
	}

	// http/1.1
	if err := req.Write(uConn); err != nil {
		_ = uConn.Close()
		return nil, err
	}
	resp, err := http.ReadResponse(bufio.NewReader(uConn), req)
	if err != nil {
		_ = uConn.Close()
		return nil, err
	}
	resp.Body = &connCloser{ReadCloser: resp.Body, conn: uConn}
	return resp, nil
}

// connCloser 每个请求独占一个连接 读完后一起关闭
type connCloser struct {
	io.ReadCloser
	conn io.Closer
}

func (c *connCloser) Close() error {
	_ = c.ReadCloser.Close()
	return c.conn.Close()
}
