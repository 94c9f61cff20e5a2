package api

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/fuzzymachine/efficiency/pkg/fault"
	"github.com/fuzzymachine/efficiency/server/internal/csvio"
)

const exportFilename = "machines.csv"

func (s *Server) exportCSV(w http.ResponseWriter, r *http.Request) error {
	machines, err := s.store.List(r.Context())
	if err != nil {
		return err
	}
	scored, err := s.svc.ScoreAll(machines)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := csvio.Export(&buf, scored); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+exportFilename+`"`)
	w.WriteHeader(http.StatusOK)
	_, err = buf.WriteTo(w)
	return err
}

func (s *Server) importCSV(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fault.Validation("upload exceeds %d bytes", tooLarge.Limit)
		}
		return fault.Wrap(err, fault.KindValidation, "invalid multipart form")
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		return fault.Wrap(err, fault.KindValidation, "missing form file \"file\"")
	}
	defer file.Close()

	report, err := s.importer.Import(r.Context(), file)
	if err != nil {
		return fault.Wrap(err, fault.KindValidation, "read CSV upload")
	}
	if s.metrics != nil {
		s.metrics.ObserveImport(report.SuccessfulImports, report.FailedImports)
	}

	if s.alerts != nil {
		for _, m := range report.ImportedMachines {
			ev, err := s.svc.Evaluate(m)
			if err != nil {
				return err
			}
			s.alerts.Evaluate(m, ev)
		}
	}
	if report.SuccessfulImports > 0 && s.notifier != nil {
		s.notifier.Notify()
	}

	replyJSON(r.Context(), w, http.StatusOK, report)
	return nil
}
