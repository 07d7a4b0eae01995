// Package dto はgenerationフィーチャーのHTTPトランスポート層のデータ転送オブジェクトを定義します。
package dto

// GenerateReq は/generateエンドポイントのリクエストです。
// JSONの場合 ReferenceImage は data URL、multipartの場合は reference ファイルで参照画像を渡します。
type GenerateReq struct {
	Prompt         string `json:"prompt" form:"prompt" binding:"max=4000"`
	AspectRatio    string `json:"aspectRatio" form:"aspectRatio"`
	ReferenceImage string `json:"referenceImage" form:"-"`
}
