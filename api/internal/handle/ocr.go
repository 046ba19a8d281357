package handle

import (
	"io"
	"net/http"
)

// OCR: сквозной вызов распознавания без сессии, те же имена полей формы.
func (h *Handle) OCR(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		writeError(w, http.StatusBadRequest, "bad multipart: "+err.Error())
		return
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file")
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read file: "+err.Error())
		return
	}
	opt, err := formOptions(r, h.options.Get(""))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.engine.Process(r.Context(), data, hdr.Filename, opt)
	if err != nil {
		writeOCRError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
