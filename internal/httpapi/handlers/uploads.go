package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"path"
	"strings"

	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/httpkit"
	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/pkg/errors"
)

type PresignUploadRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

// PresignUpload issues a short-lived upload grant. The returned key is what
// the client later submits as the job input; the server never proxies the
// upload bytes.
func (h *Handler) PresignUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := h.log.FromContext(ctx)

	var req PresignUploadRequest
	if err := httpkit.DecodeJSON(r, &req); err != nil {
		httpkit.WriteErr(w, 400, string(errors.CodeValidation), "invalid json body", nil)
		return
	}

	req.Filename = strings.TrimSpace(req.Filename)
	if req.Filename == "" {
		httpkit.WriteErr(w, 400, string(errors.CodeValidation), "filename is required",
			map[string]any{"field": "filename"})
		return
	}

	key := uploadKey(req.Filename)

	grant, err := h.presigner.PresignPut(ctx, key, req.ContentType)
	if err != nil {
		log.Error("presign upload failed", "key", key, "error", err.Error())
		httpkit.WriteAppErr(w, err)
		return
	}

	log.Info("upload presigned", "key", key)
	httpkit.WriteJSON(w, 201, map[string]any{
		"key":     key,
		"url":     grant.URL,
		"headers": grant.Headers,
	})
}

// uploadKey namespaces inputs under uploads/ with a random prefix so two
// uploads of the same filename never collide.
func uploadKey(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		base = "file"
	}

	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return "uploads/" + hex.EncodeToString(buf) + "_" + base
}
