package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/hitoshi/linkedout/internal/media"
	"github.com/hitoshi/linkedout/internal/model"
)

// ImageUploader は画像アップロードのインターフェース。
// *media.Uploader が実装する。
type ImageUploader interface {
	Enabled() bool
	MaxBytes() int64
	Upload(ctx context.Context, filename string, r io.Reader) (media.Image, error)
}

// multipartOverhead はマルチパートの境界やヘッダーのために画像サイズ上限へ加える余裕。
const multipartOverhead = 64 << 10

// ImageHandler は画像アップロードのHTTPハンドラー。
type ImageHandler struct {
	uploader ImageUploader
}

// NewImageHandler はImageHandlerを生成する。
func NewImageHandler(uploader ImageUploader) *ImageHandler {
	return &ImageHandler{uploader: uploader}
}

// UploadImage はマルチパートのfileフィールドで受け取った画像をアップロードし、公開URLを返す。
// 返されたURLはユーザーのprofileImageや職歴のcompanyLogoに指定する。
// POST /api/images
func (h *ImageHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	if h.uploader == nil || !h.uploader.Enabled() {
		writeAPIErrorResponse(w, r, http.StatusServiceUnavailable, &model.APIError{
			Code:     "UPLOAD_DISABLED",
			Message:  "画像アップロードは設定されていません。",
			Category: "system",
			Action:   "画像URLを直接指定してください。",
		})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.uploader.MaxBytes()+multipartOverhead)
	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeAPIErrorResponse(w, r, http.StatusRequestEntityTooLarge, model.NewImageTooLargeError(h.uploader.MaxBytes()))
			return
		}
		writeAPIErrorResponse(w, r, http.StatusBadRequest, model.NewValidationError("file", "画像ファイルを指定してください"))
		return
	}
	defer file.Close()

	img, err := h.uploader.Upload(r.Context(), header.Filename, file)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, img)
}
