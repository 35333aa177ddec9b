package http

import (
	"net/http"

	"github.com/idpuniv/livewire/internal/entity"
)

func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	var (
		products []entity.Product
		err      error
	)
	if q := r.URL.Query().Get("q"); q != "" {
		products, err = h.Catalog.Search(r.Context(), q)
	} else {
		products, err = h.Catalog.FindAll(r.Context())
	}
	if err != nil {
		writeError(w, err)
		return
	}
	if products == nil {
		products = []entity.Product{}
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	p, err := h.Catalog.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var p entity.Product
	if !decode(w, r, &p) {
		return
	}
	p.ID = 0
	events, err := h.Catalog.Create(r.Context(), &p)
	if err != nil {
		writeError(w, err)
		return
	}
	h.dispatch(r, events)
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var p entity.Product
	if !decode(w, r, &p) {
		return
	}
	p.ID = id
	events, err := h.Catalog.Update(r.Context(), &p)
	if err != nil {
		writeError(w, err)
		return
	}
	h.dispatch(r, events)
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	events, err := h.Catalog.Delete(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	h.dispatch(r, events)
	w.WriteHeader(http.StatusNoContent)
}
