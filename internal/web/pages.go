package web

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/a3tai/order-intake/internal/export"
	"github.com/a3tai/order-intake/internal/extract"
	"github.com/a3tai/order-intake/internal/intake"
	"github.com/a3tai/order-intake/internal/rules"
)

const multipartMemory = 8 << 20

// Limits on a table posted back from the review form.
const (
	maxTableRows  = 10000
	maxTableCells = 500000
)

var templateFuncs = template.FuncMap{
	"statusLabel": func(s extract.Status) string {
		switch s {
		case extract.StatusNoPattern:
			return "未設定"
		case extract.StatusInvalidPattern:
			return "規則錯誤"
		default:
			return "已擷取"
		}
	},
}

type flash struct {
	Kind string
	Text string
}

type pageData struct {
	Version       string
	Customers     []string
	Query         string
	Selected      string
	AdminEnabled  bool
	Admin         bool
	RulesText     string
	PatternErrors []rules.PatternError
	Checked       bool
	Flashes       []flash
	Result        *intake.OrderResult
	Table         *extract.Table
	Submission    *intake.Submission
	Warnings      []string
	Error         string
}

// newPage collects the state shared by every render: customer list, the
// selected customer and, for admins, its rules.
func (s *Server) newPage(w http.ResponseWriter, r *http.Request, selected string) *pageData {
	p := &pageData{
		Version:      s.deps.Version,
		Query:        r.FormValue("q"),
		AdminEnabled: s.deps.Auth.Enabled(),
		Admin:        s.deps.Auth.Session(r).IsAdmin(),
	}

	for _, f := range s.deps.Auth.Flashes(w, r) {
		p.Flashes = append(p.Flashes, flash{Kind: f[0], Text: f[1]})
	}

	customers, err := s.store.Search(p.Query)
	if err != nil {
		s.logger.Error().Err(err).Msg("list customers")
		p.Error = err.Error()
	}
	p.Customers = customers

	p.Selected = selected
	if p.Selected == "" && len(customers) > 0 {
		p.Selected = customers[0]
	}

	if p.Admin && p.Selected != "" {
		text, err := s.deps.Editor.Render(p.Selected)
		if err != nil {
			p.Error = userMessage(err)
		}
		p.RulesText = text
	}
	return p
}

func (s *Server) render(w http.ResponseWriter, status int, p *pageData) {
	var buf bytes.Buffer
	if err := s.pages.ExecuteTemplate(&buf, "index.html", p); err != nil {
		s.logger.Error().Err(err).Msg("Failed to render page")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) redirectHome(w http.ResponseWriter, r *http.Request, customer string) {
	target := "/"
	if customer != "" {
		target += "?customer=" + url.QueryEscape(customer)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, s.newPage(w, r, r.FormValue("customer")))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	customer := r.FormValue("customer")
	if err := s.deps.Auth.Login(w, r, r.FormValue("password")); err != nil {
		s.deps.Auth.AddFlash(w, r, "error", userMessage(err))
	} else {
		s.deps.Auth.AddFlash(w, r, "success", "登入成功！")
	}
	s.redirectHome(w, r, customer)
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.deps.MaxUploadSize+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		p := s.newPage(w, r, r.FormValue("customer"))
		p.Error = "上傳失敗：" + err.Error()
		s.render(w, http.StatusBadRequest, p)
		return
	}

	customer := r.FormValue("customer")
	p := s.newPage(w, r, customer)

	data, err := readUpload(r, "file")
	if err != nil {
		p.Error = "請上傳 PDF 檔"
		s.render(w, http.StatusBadRequest, p)
		return
	}

	res, err := s.deps.Intake.ExtractOrder(r.Context(), p.Selected, data)
	if res != nil {
		p.Warnings = res.Warnings
	}
	if err != nil {
		p.Error = userMessage(err)
		s.render(w, statusFor(err), p)
		return
	}

	p.Result = res
	p.Table = res.Table
	s.render(w, http.StatusOK, p)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format := r.PathValue("format")
	if export.ContentType(format) == "" {
		http.NotFound(w, r)
		return
	}

	customer, table, err := tableFromForm(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var buf bytes.Buffer
	if err := s.deps.Exporter.Write(&buf, format, table); err != nil {
		s.logger.Error().Err(err).Str("format", format).Msg("export failed")
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	s.deps.Metrics.ObserveExport(format)

	disposition := mime.FormatMediaType("attachment", map[string]string{
		"filename": export.Filename(customer, format),
	})
	w.Header().Set("Content-Type", export.ContentType(format))
	w.Header().Set("Content-Disposition", disposition)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	customer, table, err := tableFromForm(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	p := s.newPage(w, r, customer)
	p.Submission = s.deps.Intake.Submit(customer, table)
	p.Table = table
	s.render(w, http.StatusOK, p)
}

func (s *Server) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	from := r.FormValue("customer")
	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		s.deps.Auth.AddFlash(w, r, "warning", "請輸入客戶名稱")
		s.redirectHome(w, r, from)
		return
	}

	if err := s.deps.Editor.CreateCustomer(name, from); err != nil {
		s.deps.Auth.AddFlash(w, r, "error", userMessage(err))
		s.redirectHome(w, r, from)
		return
	}

	s.deps.Auth.AddFlash(w, r, "success", "已建立")
	s.redirectHome(w, r, name)
}

func (s *Server) handleDeleteCustomer(w http.ResponseWriter, r *http.Request) {
	customer := r.FormValue("customer")
	if r.FormValue("confirm") != "yes" {
		s.deps.Auth.AddFlash(w, r, "warning", "⚠ 確認刪除 "+customer+"？請勾選確認")
		s.redirectHome(w, r, customer)
		return
	}

	if err := s.deps.Editor.DeleteCustomer(customer); err != nil {
		s.deps.Auth.AddFlash(w, r, "error", "刪除失敗："+userMessage(err))
		s.redirectHome(w, r, customer)
		return
	}

	s.deps.Auth.AddFlash(w, r, "success", "已刪除")
	s.redirectHome(w, r, "")
}

func (s *Server) handleSaveRules(w http.ResponseWriter, r *http.Request) {
	customer := r.FormValue("customer")
	raw := r.FormValue("rules")

	if _, err := s.deps.Editor.ParseAndSave(customer, raw); err != nil {
		p := s.newPage(w, r, customer)
		p.RulesText = raw
		p.Error = userMessage(err)
		s.render(w, statusFor(err), p)
		return
	}

	s.deps.Auth.AddFlash(w, r, "success", "已儲存規則")
	s.redirectHome(w, r, customer)
}

func (s *Server) handleCheckRules(w http.ResponseWriter, r *http.Request) {
	customer := r.FormValue("customer")
	raw := r.FormValue("rules")

	p := s.newPage(w, r, customer)
	p.RulesText = raw

	errs, err := s.deps.Editor.Check(raw)
	if err != nil {
		p.Error = userMessage(err)
		s.render(w, statusFor(err), p)
		return
	}

	p.Checked = true
	p.PatternErrors = errs
	s.render(w, http.StatusOK, p)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	_ = WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": s.deps.Version})
}

// tableFromForm rebuilds the reviewed table from repeated "col" and "cell"
// fields (row-major) plus a "rows" count.
func tableFromForm(r *http.Request) (string, *extract.Table, error) {
	if err := r.ParseForm(); err != nil {
		return "", nil, err
	}

	rows, err := strconv.Atoi(r.PostForm.Get("rows"))
	if err != nil {
		return "", nil, errors.New("missing row count")
	}
	if rows > maxTableRows {
		return "", nil, fmt.Errorf("table has %d rows, limit is %d", rows, maxTableRows)
	}
	if n := len(r.PostForm["cell"]); n > maxTableCells {
		return "", nil, fmt.Errorf("table has %d cells, limit is %d", n, maxTableCells)
	}

	table, err := extract.NewTable(r.PostForm["col"], r.PostForm["cell"], rows)
	if err != nil {
		return "", nil, err
	}
	return r.PostForm.Get("customer"), table, nil
}

func readUpload(r *http.Request, field string) ([]byte, error) {
	file, _, err := r.FormFile(field)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}
