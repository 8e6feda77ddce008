package shifts

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Andriy31193/smastund-scrapper/lib/scrapers/vinnustund"
)

// The JSON surface is a thin forwarding shim around the service: it
// normalizes parameters, renders records, and maps error kinds to
// status codes. No business logic lives here.

type shiftsResponse struct {
	Success  bool                     `json:"success"`
	DateFrom string                   `json:"dateFrom"`
	DateTo   string                   `json:"dateTo"`
	Shifts   []vinnustund.ShiftRecord `json:"shifts"`
	Count    int                      `json:"count"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

type authResponse struct {
	Success       bool   `json:"success"`
	Authenticated bool   `json:"authenticated"`
	Message       string `json:"message"`
}

func (s Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/retrieve_shifts", s.handleRetrieveShifts)
	mux.HandleFunc("/test_auth", s.handleTestAuth)
	mux.HandleFunc("/health", handleHealth)
}

// the date range may arrive via query string, json body or form body;
// all three normalize into the same call
func dateParams(r *http.Request) (string, string) {
	if r.Method == http.MethodPost {
		if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
			var body struct {
				DateFrom string `json:"dateFrom"`
				DateTo   string `json:"dateTo"`
			}
			// a malformed body just means missing parameters below
			_ = json.NewDecoder(r.Body).Decode(&body)
			return body.DateFrom, body.DateTo
		}
		_ = r.ParseForm()
		return r.PostFormValue("dateFrom"), r.PostFormValue("dateTo")
	}
	q := r.URL.Query()
	return q.Get("dateFrom"), q.Get("dateTo")
}

func writeJson(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(body)
	if err != nil {
		slog.Warn("failed to encode response", "err", err)
	}
}

func statusForError(err error) int {
	if errors.Is(err, vinnustund.ErrInvalidParameters) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	writeJson(w, statusForError(err), errorResponse{
		Success: false,
		Error:   vinnustund.Kind(err),
		Message: err.Error(),
	})
}

func (s Service) handleRetrieveShifts(w http.ResponseWriter, r *http.Request) {
	dateFrom, dateTo := dateParams(r)
	if dateFrom == "" || dateTo == "" {
		writeJson(w, http.StatusBadRequest, errorResponse{
			Success: false,
			Error:   "InvalidParameters",
			Message: "both dateFrom and dateTo are required (format: dd.MM.yyyy)",
		})
		return
	}

	records, err := s.RetrieveShifts(r.Context(), dateFrom, dateTo)
	if err != nil {
		slog.ErrorContext(r.Context(), "retrieve shifts failed", "err", err)
		writeError(w, err)
		return
	}
	if records == nil {
		records = []vinnustund.ShiftRecord{}
	}

	writeJson(w, http.StatusOK, shiftsResponse{
		Success:  true,
		DateFrom: dateFrom,
		DateTo:   dateTo,
		Shifts:   records,
		Count:    len(records),
	})
}

func (s Service) handleTestAuth(w http.ResponseWriter, r *http.Request) {
	ok := s.IsAuthenticated(r.Context())
	message := "authentication successful"
	if !ok {
		message = "authentication failed - check credentials"
	}
	writeJson(w, http.StatusOK, authResponse{
		Success:       ok,
		Authenticated: ok,
		Message:       message,
	})
}

// liveness only, requires no session
func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJson(w, http.StatusOK, map[string]string{"status": "healthy"})
}
