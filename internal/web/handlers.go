package web

import (
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/facility-etl/internal/history"
	"github.com/JonMunkholm/facility-etl/internal/schema"
	"github.com/JonMunkholm/facility-etl/internal/table"
	"github.com/JonMunkholm/facility-etl/internal/validate"
	"github.com/JonMunkholm/facility-etl/internal/web/templates"
)

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// validCode accepts two letters; anything else would escape the source tree.
func validCode(cc string) bool {
	if len(cc) != 2 {
		return false
	}
	for _, c := range cc {
		if c < 'A' || c > 'Z' {
			return false
		}
	}
	return true
}

// ServiceInfo describes a published service.
type ServiceInfo struct {
	Service   schema.Service      `json:"service"`
	Label     string              `json:"label"`
	Countries []string            `json:"countries"`
	LastRun   *history.RunSummary `json:"last_run,omitempty"`
}

func (s *Server) services() []ServiceInfo {
	var out []ServiceInfo
	for _, svc := range s.runner.Services() {
		p, _ := s.runner.Pipeline(svc)
		info := ServiceInfo{
			Service:   svc,
			Label:     p.Layout().Spec.Label,
			Countries: p.Countries(),
		}
		if last := s.runner.Last(svc); last != nil {
			sum := history.Summarize(last)
			info.LastRun = &sum
		}
		out = append(out, info)
	}
	return out
}

func (s *Server) handleServices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.services())
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	var svc schema.Service
	if v := r.URL.Query().Get("service"); v != "" {
		parsed, err := schema.ParseService(v)
		if err != nil {
			respondError(w, r, &notFoundError{what: "service", err: err})
			return
		}
		svc = parsed
	}
	runs, err := s.history.ListRuns(r.Context(), svc, parseIntParam(r, "limit", 20))
	if err != nil {
		respondError(w, r, err)
		return
	}
	if runs == nil {
		runs = []history.RunSummary{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// report validates the normalized table of {service}/{cc}.
func (s *Server) report(r *http.Request) (validate.Report, error) {
	p, err := s.pipeline(r)
	if err != nil {
		return validate.Report{}, err
	}
	cc := strings.ToUpper(chi.URLParam(r, "cc"))
	if !validCode(cc) {
		return validate.Report{}, &notFoundError{what: "country", err: errors.New(cc + " is not a country code")}
	}
	layout := p.Layout()
	t, err := table.LoadFile(layout.SourceCSV(cc), table.DefaultLoadOptions())
	if err != nil {
		return validate.Report{}, err
	}
	return validate.Engine{ShowValues: true}.Validate(t, cc, layout.Spec), nil
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	rep, err := s.report(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if rep.Violations == nil {
		rep.Violations = []validate.Violation{}
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	p, err := s.pipeline(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	res, err := s.runner.Run(r.Context(), p.Layout().Spec.Service, "api")
	if err != nil {
		if res == nil {
			respondError(w, r, err)
			return
		}
		// Cancelled midway: the partial result says how far it got.
		writeJSON(w, http.StatusInternalServerError, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleWebExtract(w http.ResponseWriter, r *http.Request) {
	p, err := s.pipeline(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	path := p.Layout().WebExtract()
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			err = &table.IOError{Op: "open", Path: path, Err: err}
		}
		respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	http.ServeFile(w, r, path)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	render(w, r, http.StatusOK, templates.IndexPage(serviceCards(s.services())))
}

func (s *Server) handleReportPage(w http.ResponseWriter, r *http.Request) {
	rep, err := s.report(r)
	if err != nil {
		status, resp := classify(err)
		render(w, r, status, templates.ErrorPage(status, resp.Message, resp.Action, resp.Code))
		return
	}
	render(w, r, http.StatusOK, templates.ReportPage(rep))
}
