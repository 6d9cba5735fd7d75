// Package crmmock is an in-memory stand-in for the CRM backend, used by the
// e2e tests and the standalone mockcrm binary during local development.
package crmmock

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"voicebot-service/internal/common/logger"
)

var statusPattern = regexp.MustCompile(`^(NEW|IN_PROGRESS|FOLLOW_UP|WON|LOST)$`)

type lead struct {
	ID        string `json:"lead_id"`
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	City      string `json:"city"`
	Source    string `json:"source,omitempty"`
	Status    string `json:"status"`
	Notes     string `json:"notes,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type visit struct {
	ID        string `json:"visit_id"`
	LeadID    string `json:"lead_id"`
	VisitTime string `json:"visit_time"`
	Notes     string `json:"notes,omitempty"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

// Server holds the mock CRM state behind a mutex so it is safe for
// concurrent handlers.
type Server struct {
	mu     sync.Mutex
	leads  map[string]*lead
	visits map[string]*visit
	logger logger.Logger
}

func New(log logger.Logger) *Server {
	return &Server{
		leads:  make(map[string]*lead),
		visits: make(map[string]*visit),
		logger: log,
	}
}

// Handler returns the HTTP routing for the mock backend.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/crm/leads", s.handleLeads)
	mux.HandleFunc("/crm/leads/", s.handleLeadStatus)
	mux.HandleFunc("/crm/visits", s.handleVisits)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
	})
	return mux
}

func (s *Server) handleLeads(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.mu.Lock()
		all := make([]*lead, 0, len(s.leads))
		for _, l := range s.leads {
			all = append(all, l)
		}
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]interface{}{"leads": all, "count": len(all)})

	case http.MethodPost:
		var req struct {
			Name   string `json:"name"`
			Phone  string `json:"phone"`
			City   string `json:"city"`
			Source string `json:"source"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeDetail(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.Name == "" || req.Phone == "" || req.City == "" {
			writeDetail(w, http.StatusUnprocessableEntity, "name, phone and city are required")
			return
		}

		now := time.Now().UTC().Format(time.RFC3339)
		l := &lead{
			ID:        uuid.NewString(),
			Name:      req.Name,
			Phone:     req.Phone,
			City:      req.City,
			Source:    req.Source,
			Status:    "NEW",
			CreatedAt: now,
			UpdatedAt: now,
		}
		s.mu.Lock()
		s.leads[l.ID] = l
		s.mu.Unlock()

		s.logger.Info("lead created", map[string]interface{}{"lead_id": l.ID})
		writeJSON(w, http.StatusCreated, map[string]interface{}{
			"lead_id": l.ID,
			"status":  l.Status,
		})

	default:
		writeDetail(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleLeadStatus(w http.ResponseWriter, r *http.Request) {
	// Path shape: /crm/leads/{id}/status
	rest := strings.TrimPrefix(r.URL.Path, "/crm/leads/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[1] != "status" || r.Method != http.MethodPost {
		writeDetail(w, http.StatusNotFound, "not found")
		return
	}
	leadID := parts[0]

	var req struct {
		Status string `json:"status"`
		Notes  string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !statusPattern.MatchString(req.Status) {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid status: "+req.Status)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.leads[leadID]
	if !ok {
		writeDetail(w, http.StatusNotFound, "lead not found: "+leadID)
		return
	}
	l.Status = req.Status
	if req.Notes != "" {
		l.Notes = req.Notes
	}
	l.UpdatedAt = time.Now().UTC().Format(time.RFC3339)

	s.logger.Info("lead status updated", map[string]interface{}{
		"lead_id": leadID,
		"status":  req.Status,
	})
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"lead_id": l.ID,
		"status":  l.Status,
	})
}

func (s *Server) handleVisits(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.mu.Lock()
		all := make([]*visit, 0, len(s.visits))
		for _, v := range s.visits {
			all = append(all, v)
		}
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]interface{}{"visits": all, "count": len(all)})

	case http.MethodPost:
		var req struct {
			LeadID    string `json:"lead_id"`
			VisitTime string `json:"visit_time"`
			Notes     string `json:"notes"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeDetail(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.LeadID == "" || req.VisitTime == "" {
			writeDetail(w, http.StatusUnprocessableEntity, "lead_id and visit_time are required")
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.leads[req.LeadID]; !ok {
			writeDetail(w, http.StatusNotFound, "lead not found: "+req.LeadID)
			return
		}
		v := &visit{
			ID:        uuid.NewString(),
			LeadID:    req.LeadID,
			VisitTime: req.VisitTime,
			Notes:     req.Notes,
			Status:    "SCHEDULED",
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
		}
		s.visits[v.ID] = v

		s.logger.Info("visit scheduled", map[string]interface{}{
			"visit_id": v.ID,
			"lead_id":  v.LeadID,
		})
		writeJSON(w, http.StatusCreated, map[string]interface{}{
			"visit_id": v.ID,
			"status":   v.Status,
		})

	default:
		writeDetail(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// SeedLead inserts a lead directly, for tests that need a known id.
func (s *Server) SeedLead(id, name, phone, city string) {
	now := time.Now().UTC().Format(time.RFC3339)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leads[id] = &lead{
		ID:        id,
		Name:      name,
		Phone:     phone,
		City:      city,
		Status:    "NEW",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]interface{}{"detail": detail})
}
