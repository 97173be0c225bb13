package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/card-scanner/internal/auth"
	"github.com/joseph-ayodele/card-scanner/internal/cards"
	"github.com/joseph-ayodele/card-scanner/internal/common"
	"github.com/joseph-ayodele/card-scanner/internal/entity"
	"github.com/joseph-ayodele/card-scanner/internal/export"
	"github.com/joseph-ayodele/card-scanner/internal/extract"
	"github.com/joseph-ayodele/card-scanner/internal/repository"
	"github.com/joseph-ayodele/card-scanner/internal/utils"
)

type loginView struct {
	Register bool
}

type dashboardView struct {
	Username    string
	Contact     extract.ContactRecord
	Scanned     bool
	NeedsReview bool
	Error       string
}

type cardsView struct {
	Username string
	Search   string
	Cards    []*entity.Card
}

func (s *Server) loginPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "login.html", loginView{Register: r.URL.Path == "/register"})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	sess, err := s.auth.Login(r.Context(), r.PostFormValue("username"), r.PostFormValue("password"))
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			http.Error(w, "Invalid credentials", http.StatusUnauthorized)
			return
		}
		s.fail(w, r, err)
		return
	}
	s.setSessionCookie(w, sess.Token, sess.ExpiresAt)
	http.Redirect(w, r, "/dashboard", http.StatusFound)
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	_, err := s.auth.Register(r.Context(), r.PostFormValue("username"), r.PostFormValue("password"))
	switch {
	case err == nil:
		http.Redirect(w, r, "/login", http.StatusFound)
	case errors.Is(err, repository.ErrUsernameTaken):
		http.Error(w, "Username already exists", http.StatusConflict)
	case errors.Is(err, common.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		s.fail(w, r, err)
	}
}

func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "dashboard.html", dashboardView{Username: common.UsernameFromContext(r.Context())})
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	view := dashboardView{Username: common.UsernameFromContext(ctx)}
	userID, _ := common.UserIDFromContext(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			view.Error = fmt.Sprintf("Upload is larger than %d bytes", s.opts.MaxUploadBytes)
			s.render(w, r, http.StatusRequestEntityTooLarge, "dashboard.html", view)
			return
		}
		if !errors.Is(err, http.ErrNotMultipart) {
			view.Error = "Could not read upload"
			s.render(w, r, http.StatusBadRequest, "dashboard.html", view)
			return
		}
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("card_image")
	if err != nil || header.Filename == "" {
		// no file chosen: show the empty form again
		if file != nil {
			_ = file.Close()
		}
		s.render(w, r, http.StatusOK, "dashboard.html", view)
		return
	}
	defer file.Close()

	res, err := s.cards.Scan(ctx, userID, header.Filename, file)
	if err != nil {
		log := common.LoggerFromContext(ctx, s.logger)
		log.Error("scan failed", "filename", header.Filename, "error", err)
		status := common.HTTPStatus(err)
		view.Error = "Could not read the card"
		if status == http.StatusBadRequest {
			view.Error = "Unsupported file type"
		}
		s.render(w, r, status, "dashboard.html", view)
		return
	}
	view.Contact = res.Contact
	view.Scanned = true
	view.NeedsReview = res.NeedsReview
	s.render(w, r, http.StatusOK, "dashboard.html", view)
}

func (s *Server) listCards(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := common.UserIDFromContext(ctx)
	search := cards.NormalizeQuery(r.FormValue("search"))
	list, err := s.cards.List(ctx, userID, search)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "cards.html", cardsView{
		Username: common.UsernameFromContext(ctx),
		Search:   search,
		Cards:    list,
	})
}

func (s *Server) exportCSV(w http.ResponseWriter, r *http.Request) {
	s.serveExport(w, r, export.CSVFilename, export.CSVMediaType, s.export.ExportCardsCSV)
}

func (s *Server) exportXLSX(w http.ResponseWriter, r *http.Request) {
	s.serveExport(w, r, export.XLSXFilename, export.XLSXMediaType, s.export.ExportCardsXLSX)
}

type exportFunc func(ctx context.Context, userID uuid.UUID, from, to *time.Time) ([]byte, error)

func (s *Server) serveExport(w http.ResponseWriter, r *http.Request, filename, mediaType string, fn exportFunc) {
	ctx := r.Context()
	userID, _ := common.UserIDFromContext(ctx)
	from, to, err := utils.ParseDateRange(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	data, err := fn(ctx, userID, from, to)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", mediaType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookie); err == nil {
		if err := s.auth.Logout(r.Context(), c.Value); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	s.clearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.db.HealthCheck(r.Context(), 2*time.Second); err != nil {
		respondJSON(w, map[string]string{"status": "unavailable"}, http.StatusServiceUnavailable)
		return
	}
	respondJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.tmpl.ExecuteTemplate(w, name, data); err != nil {
		common.LoggerFromContext(r.Context(), s.logger).Error("template render failed", "template", name, "error", err)
	}
}

// fail logs err and answers with the status its sentinel maps to.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := common.HTTPStatus(err)
	common.LoggerFromContext(r.Context(), s.logger).Error("request failed", "status", status, "error", err)
	http.Error(w, http.StatusText(status), status)
}

func respondJSON(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
