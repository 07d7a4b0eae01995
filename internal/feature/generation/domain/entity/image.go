// Package entity はgenerationフィーチャーのドメインモデルを定義します。
package entity

import (
	"encoding/base64"
	"fmt"
	"strings"

	"studio_backend/internal/feature/generation/domain"
)

// DefaultMIMEType は MIME タイプが不明な画像に使用します。
const DefaultMIMEType = "image/png"

// Image は画像のバイト列と MIME タイプです。
type Image struct {
	Data     []byte
	MIMEType string
}

// DataURL は data:<mime>;base64,<payload> 形式の文字列を返します。
func (img Image) DataURL() string {
	mime := img.MIMEType
	if mime == "" {
		mime = DefaultMIMEType
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

// ParseDataURL は base64 の data URL を Image に変換します。
// MIME タイプが省略されている場合は image/png とみなします。
func ParseDataURL(s string) (*Image, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return nil, fmt.Errorf("%w: not a data URL", domain.ErrUnsupportedReferenceImage)
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, fmt.Errorf("%w: data URL has no payload", domain.ErrUnsupportedReferenceImage)
	}
	mime, params, _ := strings.Cut(header, ";")
	if !strings.Contains(params, "base64") {
		return nil, fmt.Errorf("%w: data URL is not base64 encoded", domain.ErrUnsupportedReferenceImage)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnsupportedReferenceImage, err)
	}
	if mime == "" {
		mime = DefaultMIMEType
	}
	return &Image{Data: data, MIMEType: mime}, nil
}
