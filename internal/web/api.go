package web

import (
	"errors"
	"net/http"

	"github.com/a3tai/order-intake/internal/intake"
	"github.com/a3tai/order-intake/internal/rules"
)

type customersResponse struct {
	Customers []string `json:"customers"`
}

type rulesResponse struct {
	Customer string               `json:"customer"`
	Rules    *rules.RuleSet       `json:"rules"`
	Errors   []rules.PatternError `json:"errors,omitempty"`
}

type extractResponse struct {
	*intake.OrderResult
	Error string `json:"error,omitempty"`
}

func (s *Server) handleAPICustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := s.store.Search(r.URL.Query().Get("q"))
	if err != nil {
		_ = WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if customers == nil {
		customers = []string{}
	}
	_ = WriteJSON(w, http.StatusOK, customersResponse{Customers: customers})
}

func (s *Server) handleAPIRules(w http.ResponseWriter, r *http.Request) {
	customer := r.PathValue("customer")

	exists, err := s.store.Exists(customer)
	if err != nil {
		_ = WriteError(w, statusFor(err), err.Error())
		return
	}
	if !exists {
		_ = WriteError(w, http.StatusNotFound, rules.ErrCustomerNotFound.Error())
		return
	}

	rs, err := s.store.Load(customer)
	if err != nil {
		_ = WriteError(w, statusFor(err), err.Error())
		return
	}

	_ = WriteJSON(w, http.StatusOK, rulesResponse{
		Customer: customer,
		Rules:    rs,
		Errors:   rules.ValidateSyntax(rs),
	})
}

// handleAPIExtract accepts a multipart upload with "customer" and "file".
func (s *Server) handleAPIExtract(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.deps.MaxUploadSize+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		_ = WriteError(w, http.StatusBadRequest, "invalid upload: "+err.Error())
		return
	}

	data, err := readUpload(r, "file")
	if err != nil {
		_ = WriteError(w, http.StatusBadRequest, "missing file")
		return
	}

	res, err := s.deps.Intake.ExtractOrder(r.Context(), r.FormValue("customer"), data)
	switch {
	case errors.Is(err, intake.ErrNoText) && res != nil:
		_ = WriteJSON(w, http.StatusUnprocessableEntity, extractResponse{OrderResult: res, Error: err.Error()})
	case err != nil:
		_ = WriteError(w, statusFor(err), err.Error())
	default:
		_ = WriteJSON(w, http.StatusOK, extractResponse{OrderResult: res})
	}
}
