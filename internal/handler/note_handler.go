package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"versioned-notes-server/internal/domain"
	"versioned-notes-server/internal/middleware"
	"versioned-notes-server/pkg/response"
)

type NoteService interface {
	Create(ctx context.Context, email string, req *domain.CreateNoteRequest) (*domain.NoteResponse, error)
	List(ctx context.Context, email string) ([]*domain.NoteResponse, error)
	Get(ctx context.Context, email string, id int64) (*domain.NoteResponse, error)
	Update(ctx context.Context, email string, id int64, req *domain.UpdateNoteRequest) (*domain.NoteResponse, error)
	Delete(ctx context.Context, email string, id int64) error
}

type NoteHandler struct {
	service  NoteService
	validate *validator.Validate
}

func NewNoteHandler(service NoteService) *NoteHandler {
	return &NoteHandler{
		service:  service,
		validate: validator.New(),
	}
}

func noteID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (h *NoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, validationMessage(err))
		return
	}

	note, err := h.service.Create(r.Context(), middleware.GetEmail(r), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.Created(w, note)
}

func (h *NoteHandler) List(w http.ResponseWriter, r *http.Request) {
	notes, err := h.service.List(r.Context(), middleware.GetEmail(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.Success(w, notes)
}

func (h *NoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := noteID(r)
	if !ok {
		response.BadRequest(w, "Note ID must be a positive integer")
		return
	}

	note, err := h.service.Get(r.Context(), middleware.GetEmail(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.Success(w, note)
}

func (h *NoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := noteID(r)
	if !ok {
		response.BadRequest(w, "Note ID must be a positive integer")
		return
	}

	var req domain.UpdateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, validationMessage(err))
		return
	}

	note, err := h.service.Update(r.Context(), middleware.GetEmail(r), id, &req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.Success(w, note)
}

func (h *NoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := noteID(r)
	if !ok {
		response.BadRequest(w, "Note ID must be a positive integer")
		return
	}

	if err := h.service.Delete(r.Context(), middleware.GetEmail(r), id); err != nil {
		writeError(w, r, err)
		return
	}

	response.NoContent(w)
}
