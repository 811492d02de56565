package http

import (
	"net/http"

	"notaspese/internal/core"
)

func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	receipts, err := s.repo.ListReceipts(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]receiptResponse, 0, len(receipts))
	for _, rec := range receipts {
		out = append(out, toReceiptResponse(rec))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateReceipt(w http.ResponseWriter, r *http.Request) {
	var req receiptRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	var rec core.Receipt
	req.apply(&rec)

	created, err := s.repo.CreateReceipt(r.Context(), rec)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toReceiptResponse(created))
}

func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	rec, err := s.repo.GetReceipt(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toReceiptResponse(rec))
}

// handleUpdateReceipt exists for API symmetry: a receipt's employee and
// project cannot change after creation, so resubmitting the current values is
// the only update that succeeds.
func (s *Server) handleUpdateReceipt(w http.ResponseWriter, r *http.Request) {
	var req receiptRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	rec := core.Receipt{ID: r.PathValue("id")}
	req.apply(&rec)

	updated, err := s.repo.UpdateReceipt(r.Context(), rec)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toReceiptResponse(updated))
}

func (s *Server) handlePatchReceipt(w http.ResponseWriter, r *http.Request) {
	var req receiptRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	rec, err := s.repo.GetReceipt(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	req.apply(&rec)

	updated, err := s.repo.UpdateReceipt(r.Context(), rec)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toReceiptResponse(updated))
}

func (s *Server) handleDeleteReceipt(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.DeleteReceipt(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
