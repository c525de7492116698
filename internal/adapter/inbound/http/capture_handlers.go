package http

import (
	"bytes"
	"encoding/base64"
	"io"
	"net/http"
	"strconv"
)

// pngMagic is the fixed 8-byte PNG signature.
var pngMagic = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

const maxCaptureBytes = 16 << 20

// putCapture accepts PNG bytes, either raw (Content-Type: image/png) or
// as a base64 JSON field, and returns the buffer id. Bytes never touch
// disk.
func (h *Handler) putCapture(w http.ResponseWriter, r *http.Request) {
	var png []byte
	if r.Header.Get("Content-Type") == "image/png" {
		raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCaptureBytes))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "capture body unreadable or too large"})
			return
		}
		png = raw
	} else {
		var req struct {
			PNG string `json:"png" validate:"required,base64"`
		}
		if !decode(w, r, &req) {
			return
		}
		decoded, err := base64.StdEncoding.DecodeString(req.PNG)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "png field is not valid base64"})
			return
		}
		png = decoded
	}

	if !bytes.HasPrefix(png, pngMagic) {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "capture payload is not a PNG"})
		return
	}
	id := h.captures.Put(png)
	writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (h *Handler) getCapture(w http.ResponseWriter, r *http.Request) {
	png, err := h.captures.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}
