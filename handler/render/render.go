package render

import (
	"encoding/json"
	"net/http"

	"github.com/oxtoacart/bpool"
)

var buffers = bpool.NewBufferPool(64)

// JSON encodes v into a pooled buffer first so that encoding errors can
// still produce a 500 instead of a truncated body.
func JSON(w http.ResponseWriter, status int, v any) {
	buf := buffers.Get()
	defer buffers.Put(buf)

	if err := json.NewEncoder(buf).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

type ErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
}

func Error(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, map[string]any{"error": ErrorBody{Code: status, Message: msg}})
}

func Data(w http.ResponseWriter, status int, data any) {
	JSON(w, status, map[string]any{"data": data})
}
