// Package media はプロフィール画像・会社ロゴの画像ホスティング（Cloudinary）へのアップロードを提供する。
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"slices"

	"github.com/hitoshi/linkedout/internal/model"
)

// defaultBaseURL はCloudinary Upload APIのベースURL。
const defaultBaseURL = "https://api.cloudinary.com/v1_1"

// allowedContentTypes はアップロードを受け付ける画像形式。
var allowedContentTypes = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/webp",
}

// UploadRecorder はアップロード結果を記録するインターフェース。
type UploadRecorder interface {
	RecordUpload(err error, bytes int64)
}

// Image はアップロード済み画像の情報。
type Image struct {
	URL      string `json:"url"`
	PublicID string `json:"publicId"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Format   string `json:"format"`
	Bytes    int64  `json:"bytes"`
}

// cloudinaryResponse はCloudinaryのアップロードAPIのレスポンス。
type cloudinaryResponse struct {
	PublicID  string `json:"public_id"`
	URL       string `json:"url"`
	SecureURL string `json:"secure_url"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Format    string `json:"format"`
	Bytes     int64  `json:"bytes"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Uploader はCloudinaryの署名なしアップロード（upload preset）で画像をアップロードする。
type Uploader struct {
	httpClient *http.Client
	cloudName  string
	preset     string
	maxBytes   int64
	recorder   UploadRecorder
	logger     *slog.Logger
	baseURL    string // テスト用に差し替え可能
}

// NewUploader はUploaderの新しいインスタンスを生成する。
// httpClientにはSSRF防止付きのクライアントを渡す。recorderはnilでもよい。
func NewUploader(httpClient *http.Client, cloudName, preset string, maxBytes int64, recorder UploadRecorder, logger *slog.Logger) *Uploader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Uploader{
		httpClient: httpClient,
		cloudName:  cloudName,
		preset:     preset,
		maxBytes:   maxBytes,
		recorder:   recorder,
		logger:     logger,
		baseURL:    defaultBaseURL,
	}
}

// Enabled はクラウド名が設定されているかどうかを返す。
func (u *Uploader) Enabled() bool {
	return u.cloudName != ""
}

// MaxBytes はアップロード可能な最大バイト数を返す。
func (u *Uploader) MaxBytes() int64 {
	return u.maxBytes
}

// Upload は画像を読み取り、Cloudinaryにアップロードする。
// maxBytesを超える画像と、許可されていない形式の画像は送信前に拒否する。
func (u *Uploader) Upload(ctx context.Context, filename string, r io.Reader) (Image, error) {
	data, err := io.ReadAll(io.LimitReader(r, u.maxBytes+1))
	if err != nil {
		return Image{}, u.fail(ctx, 0, model.NewUploadFailedError("画像の読み取りに失敗しました"))
	}
	size := int64(len(data))
	if size > u.maxBytes {
		return Image{}, u.fail(ctx, size, model.NewImageTooLargeError(u.maxBytes))
	}
	if size == 0 {
		return Image{}, u.fail(ctx, 0, model.NewValidationError("file", "画像が空です"))
	}
	if ct := http.DetectContentType(data); !slices.Contains(allowedContentTypes, ct) {
		return Image{}, u.fail(ctx, size, model.NewValidationError("file", fmt.Sprintf("対応していない画像形式です: %s", ct)))
	}

	body, contentType, err := u.buildForm(filename, data)
	if err != nil {
		return Image{}, u.fail(ctx, size, fmt.Errorf("マルチパートフォームの作成に失敗しました: %w", err))
	}

	endpoint := fmt.Sprintf("%s/%s/image/upload", u.baseURL, url.PathEscape(u.cloudName))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return Image{}, u.fail(ctx, size, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err))
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return Image{}, u.fail(ctx, size, model.NewUploadFailedError(err.Error()))
	}
	defer resp.Body.Close()

	var result cloudinaryResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&result); err != nil {
		return Image{}, u.fail(ctx, size, model.NewUploadFailedError(fmt.Sprintf("ステータス %d", resp.StatusCode)))
	}
	if resp.StatusCode != http.StatusOK {
		reason := fmt.Sprintf("ステータス %d", resp.StatusCode)
		if result.Error != nil && result.Error.Message != "" {
			reason = result.Error.Message
		}
		return Image{}, u.fail(ctx, size, model.NewUploadFailedError(reason))
	}

	img := Image{
		URL:      result.SecureURL,
		PublicID: result.PublicID,
		Width:    result.Width,
		Height:   result.Height,
		Format:   result.Format,
		Bytes:    result.Bytes,
	}
	if img.URL == "" {
		img.URL = result.URL
	}
	if u.recorder != nil {
		u.recorder.RecordUpload(nil, size)
	}
	u.logger.InfoContext(ctx, "image uploaded",
		slog.String("public_id", img.PublicID),
		slog.Int64("bytes", size),
	)
	return img, nil
}

func (u *Uploader) buildForm(filename string, data []byte) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("upload_preset", u.preset); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// fail はアップロード失敗を記録してerrをそのまま返す。
func (u *Uploader) fail(ctx context.Context, size int64, err error) error {
	if u.recorder != nil {
		u.recorder.RecordUpload(err, size)
	}
	u.logger.WarnContext(ctx, "image upload failed",
		slog.Int64("bytes", size),
		slog.String("error", err.Error()),
	)
	return err
}
