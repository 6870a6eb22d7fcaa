package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/raimp001/autocase-ai/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func readBodyJSON(r *http.Request, maxBytes int64, out any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

// writeError 将领域错误映射为 HTTP 状态码
func writeError(w http.ResponseWriter, err error) {
	var ve *domain.ValidationError
	var ae *domain.AuthenticationError
	var nf *domain.NotFoundError

	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, Fail(ve.Error()))
	case errors.As(err, &ae):
		writeJSON(w, http.StatusUnauthorized, Fail(ae.Error()))
	case errors.As(err, &nf):
		writeJSON(w, http.StatusNotFound, Fail(nf.Error()))
	default:
		writeJSON(w, http.StatusInternalServerError, Fail("internal error"))
	}
}
