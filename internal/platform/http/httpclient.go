package http

import (
	"net"
	"net/http"
	"time"
)

// NewHTTPClient は外部API（画像生成ベンダーなど）呼び出し用のHTTPクライアントを作成します。
//
// 画像生成は応答まで数十秒かかるため、Client.Timeout は呼び出し元で
// 生成タイムアウトより長めに設定すること。
// http.DefaultClient にはタイムアウトがないため使用しない。
func NewHTTPClient(timeout time.Duration) *http.Client {
	t := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: timeout,
	}
	return &http.Client{Timeout: timeout, Transport: t}
}
