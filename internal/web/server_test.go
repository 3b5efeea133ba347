package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/phuslu/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/a3tai/order-intake/internal/auth"
	"github.com/a3tai/order-intake/internal/export"
	"github.com/a3tai/order-intake/internal/intake"
	"github.com/a3tai/order-intake/internal/metrics"
	"github.com/a3tai/order-intake/internal/pdf"
	"github.com/a3tai/order-intake/internal/rules"
)

const testPassword = "s3cret"

type stubText struct {
	result *pdf.ExtractionResult
}

func (s stubText) Extract(context.Context, []byte) (*pdf.ExtractionResult, error) {
	return s.result, nil
}

func quietLogger() *log.Logger {
	return &log.Logger{Level: log.ErrorLevel, Writer: &log.IOWriter{Writer: io.Discard}}
}

type testEnv struct {
	store  *rules.Store
	ts     *httptest.Server
	client *http.Client
}

func newTestEnv(t *testing.T, text string) *testEnv {
	t.Helper()
	logger := quietLogger()

	store, err := rules.NewStore(t.TempDir(), logger)
	require.NoError(t, err)

	m := metrics.New()
	manager, err := auth.NewManager(testPassword, nil, false, logger)
	require.NoError(t, err)

	srv, err := New("127.0.0.1:0", Deps{
		Intake: intake.NewService(store, stubText{result: &pdf.ExtractionResult{
			Text:   text,
			Method: pdf.MethodText,
			Pages:  1,
		}}, m, logger),
		Editor:        rules.NewEditor(store),
		Exporter:      export.NewExporter(logger),
		Auth:          manager,
		Metrics:       m,
		Logger:        logger,
		MaxUploadSize: 1 << 20,
		Version:       "test",
	})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &testEnv{store: store, ts: ts, client: &http.Client{Jar: jar}}
}

func (e *testEnv) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	resp, err := e.client.Get(e.ts.URL + path)
	require.NoError(t, err)
	return resp, readBody(t, resp)
}

func (e *testEnv) post(t *testing.T, path string, form url.Values) (*http.Response, string) {
	t.Helper()
	resp, err := e.client.PostForm(e.ts.URL+path, form)
	require.NoError(t, err)
	return resp, readBody(t, resp)
}

func (e *testEnv) upload(t *testing.T, path, customer string) (*http.Response, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("customer", customer))
	fw, err := mw.CreateFormFile("file", "order.pdf")
	require.NoError(t, err)
	_, err = fw.Write([]byte("%PDF-1.4 stub"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := e.client.Post(e.ts.URL+path, mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	return resp, readBody(t, resp)
}

func (e *testEnv) login(t *testing.T) {
	t.Helper()
	resp, body := e.post(t, "/login", url.Values{"password": {testPassword}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, "登入成功！")
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestIndex_NoCustomers(t *testing.T) {
	env := newTestEnv(t, "")

	resp, body := env.get(t, "/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "📄 自動接單系統")
	assert.Contains(t, body, "⚠ 尚無任何客戶規則，可由管理員新增")
	assert.NotContains(t, body, "💾 儲存規則")
}

func TestIndex_ListsCustomers(t *testing.T) {
	env := newTestEnv(t, "")
	require.NoError(t, env.store.Save("acme", rules.New(rules.Rule{Field: "PO", Pattern: `\d+`})))
	require.NoError(t, env.store.Save("globex", rules.New()))

	_, body := env.get(t, "/?customer=globex")
	assert.Contains(t, body, `<option value="acme">acme</option>`)
	assert.Contains(t, body, `<option value="globex" selected>globex</option>`)
	assert.Contains(t, body, "📤 上傳訂單 PDF 進行擷取")
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t, "")

	_, body := env.post(t, "/login", url.Values{"password": {"wrong"}})
	assert.Contains(t, body, "密碼錯誤")

	env.login(t)
	_, body = env.get(t, "/")
	assert.Contains(t, body, "建立新客戶")
	assert.NotContains(t, body, "登入成功！", "flash is shown once")

	_, body = env.post(t, "/login", url.Values{"password": {"wrong"}})
	assert.Contains(t, body, "密碼錯誤")
	assert.NotContains(t, body, "登入成功！")
	assert.Contains(t, body, "建立新客戶", "admin session is kept")
}

func TestAdminRoutesRequireLogin(t *testing.T) {
	env := newTestEnv(t, "")

	for _, path := range []string{"/admin/customers", "/admin/customers/delete", "/admin/rules", "/admin/rules/check"} {
		resp, _ := env.post(t, path, url.Values{"customer": {"acme"}, "name": {"x"}})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode, path)
	}
	customers, err := env.store.List()
	require.NoError(t, err)
	assert.Empty(t, customers)
}

func TestCreateAndDeleteCustomer(t *testing.T) {
	env := newTestEnv(t, "")
	env.login(t)

	_, body := env.post(t, "/admin/customers", url.Values{"name": {"  "}})
	assert.Contains(t, body, "請輸入客戶名稱")

	_, body = env.post(t, "/admin/customers", url.Values{"name": {"acme"}})
	assert.Contains(t, body, "已建立")
	ok, err := env.store.Exists("acme")
	require.NoError(t, err)
	assert.True(t, ok)

	_, body = env.post(t, "/admin/customers", url.Values{"name": {"acme"}})
	assert.Contains(t, body, "客戶已存在")

	_, body = env.post(t, "/admin/customers/delete", url.Values{"customer": {"acme"}})
	assert.Contains(t, body, "請勾選確認")
	ok, _ = env.store.Exists("acme")
	assert.True(t, ok, "delete without confirmation must keep the customer")

	_, body = env.post(t, "/admin/customers/delete", url.Values{"customer": {"acme"}, "confirm": {"yes"}})
	assert.Contains(t, body, "已刪除")
	ok, _ = env.store.Exists("acme")
	assert.False(t, ok)
}

func TestCreateCustomerCopiesSelectedRules(t *testing.T) {
	env := newTestEnv(t, "")
	require.NoError(t, env.store.Save("acme", rules.New(rules.Rule{Field: "PO", Pattern: `PO\d+`})))
	env.login(t)

	env.post(t, "/admin/customers", url.Values{"name": {"initech"}, "customer": {"acme"}})

	rs, err := env.store.Load("initech")
	require.NoError(t, err)
	pattern, ok := rs.Get("PO")
	assert.True(t, ok)
	assert.Equal(t, `PO\d+`, pattern)
}

func TestSaveRules(t *testing.T) {
	env := newTestEnv(t, "")
	require.NoError(t, env.store.Save("acme", rules.New()))
	env.login(t)

	resp, body := env.post(t, "/admin/rules", url.Values{
		"customer": {"acme"},
		"rules":    {`{"PO": "PO\\d+", "日期": "\\d{4}/\\d{2}/\\d{2}"}`},
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "已儲存規則")

	rs, err := env.store.Load("acme")
	require.NoError(t, err)
	assert.Equal(t, []string{"PO", "日期"}, rs.Fields())
}

func TestSaveRules_InvalidJSONKeepsText(t *testing.T) {
	env := newTestEnv(t, "")
	require.NoError(t, env.store.Save("acme", rules.New(rules.Rule{Field: "PO", Pattern: "x"})))
	env.login(t)

	resp, body := env.post(t, "/admin/rules", url.Values{
		"customer": {"acme"},
		"rules":    {`{"PO": `},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, "JSON 解析失敗")
	assert.Contains(t, body, `{&#34;PO&#34;: </textarea>`)

	rs, err := env.store.Load("acme")
	require.NoError(t, err)
	pattern, _ := rs.Get("PO")
	assert.Equal(t, "x", pattern, "stored rules are untouched")
}

func TestCheckRules(t *testing.T) {
	env := newTestEnv(t, "")
	require.NoError(t, env.store.Save("acme", rules.New()))
	env.login(t)

	_, body := env.post(t, "/admin/rules/check", url.Values{
		"customer": {"acme"},
		"rules":    {`{"ok": "\\d+", "bad": "("}`},
	})
	assert.Contains(t, body, "以下 regex 錯誤：")
	assert.Contains(t, body, "<li>bad:")

	_, body = env.post(t, "/admin/rules/check", url.Values{
		"customer": {"acme"},
		"rules":    {`{"ok": "\\d+"}`},
	})
	assert.Contains(t, body, "所有 regex 均正常")
}

func TestExtract(t *testing.T) {
	env := newTestEnv(t, "PO: 4500012345 Qty: 10 Qty: 20")
	require.NoError(t, env.store.Save("acme", rules.New(
		rules.Rule{Field: "PO", Pattern: `PO: (\d+)`},
		rules.Rule{Field: "Qty", Pattern: `Qty: (\d+)`},
	)))

	resp, body := env.upload(t, "/extract", "acme")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "📄 擷取文字（預覽）")
	assert.Contains(t, body, "📝 擷取結果（可編輯）")
	assert.Contains(t, body, `name="rows" value="2"`)
	assert.Contains(t, body, `name="cell" value="4500012345"`)
	assert.Contains(t, body, `name="cell" value="20"`)
}

func TestExtract_NoText(t *testing.T) {
	env := newTestEnv(t, "  \n ")
	require.NoError(t, env.store.Save("acme", rules.New(rules.Rule{Field: "PO", Pattern: `\d+`})))

	resp, body := env.upload(t, "/extract", "acme")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body, "⚠ 無法擷取到內容，請換高畫質 PDF")
	assert.NotContains(t, body, "📝 擷取結果（可編輯）")
}

func reviewForm(customer string) url.Values {
	return url.Values{
		"customer": {customer},
		"rows":     {"2"},
		"col":      {"PO", "品名"},
		"cell":     {"1001", "螺絲", "1002", "螺帽"},
	}
}

func TestExportXLSX(t *testing.T) {
	env := newTestEnv(t, "")

	resp, body := env.post(t, "/export/xlsx", reviewForm("acme"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, export.ContentType(export.FormatXLSX), resp.Header.Get("Content-Type"))

	_, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition"))
	require.NoError(t, err)
	assert.Equal(t, "acme_訂單明細.xlsx", params["filename"])

	f, err := excelize.OpenReader(strings.NewReader(body))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(export.SheetName)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"PO", "品名"}, {"1001", "螺絲"}, {"1002", "螺帽"}}, rows)
}

func TestExportCSV(t *testing.T) {
	env := newTestEnv(t, "")

	resp, body := env.post(t, "/export/csv", reviewForm("acme"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "\ufeffPO,品名\n1001,螺絲\n1002,螺帽\n", body)
}

func TestExport_Errors(t *testing.T) {
	env := newTestEnv(t, "")

	resp, _ := env.post(t, "/export/pdf", reviewForm("acme"))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	form := reviewForm("acme")
	form.Set("rows", "3")
	resp, _ = env.post(t, "/export/xlsx", form)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestExportAndSubmit_RejectOversizedTables(t *testing.T) {
	env := newTestEnv(t, "")

	tests := []struct {
		name string
		form url.Values
	}{
		{name: "rows without columns", form: url.Values{"customer": {"acme"}, "rows": {"3000000"}}},
		{name: "row count overflows", form: url.Values{
			"customer": {"acme"},
			"rows":     {"4611686018427387904"},
			"col":      {"A", "B", "C", "D"},
		}},
		{name: "over row limit", form: url.Values{
			"customer": {"acme"},
			"rows":     {strconv.Itoa(maxTableRows + 1)},
			"col":      {"A"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, path := range []string{"/export/csv", "/export/xlsx", "/submit"} {
				resp, body := env.post(t, path, tt.form)
				assert.Equal(t, http.StatusBadRequest, resp.StatusCode, path)
				assert.Less(t, len(body), 1024, path)
			}
		})
	}
}

func TestSubmit(t *testing.T) {
	env := newTestEnv(t, "")

	resp, body := env.post(t, "/submit", reviewForm("acme"))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "已模擬送出 Oracle（2 筆）")
	assert.Contains(t, body, "<td>螺帽</td>")
}

func TestAPI(t *testing.T) {
	env := newTestEnv(t, "PO: 77")
	require.NoError(t, env.store.Save("acme", rules.New(
		rules.Rule{Field: "PO", Pattern: `PO: (\d+)`},
		rules.Rule{Field: "bad", Pattern: `(?<=x)`},
	)))

	t.Run("customers", func(t *testing.T) {
		resp, body := env.get(t, "/api/customers")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `{"customers":["acme"]}`, body)
	})

	t.Run("rules requires admin", func(t *testing.T) {
		resp, _ := env.get(t, "/api/customers/acme/rules")
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("rules", func(t *testing.T) {
		env.login(t)
		resp, body := env.get(t, "/api/customers/acme/rules")
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var got struct {
			Customer string            `json:"customer"`
			Rules    map[string]string `json:"rules"`
			Errors   []map[string]any  `json:"errors"`
		}
		require.NoError(t, json.Unmarshal([]byte(body), &got))
		assert.Equal(t, "acme", got.Customer)
		assert.Equal(t, `PO: (\d+)`, got.Rules["PO"])
		require.Len(t, got.Errors, 1)
		assert.Equal(t, "bad", got.Errors[0]["field"])
	})

	t.Run("rules for unknown customer", func(t *testing.T) {
		resp, _ := env.get(t, "/api/customers/nobody/rules")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("extract", func(t *testing.T) {
		resp, body := env.upload(t, "/api/extract", "acme")
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var got struct {
			Table struct {
				Columns []string   `json:"columns"`
				Rows    [][]string `json:"rows"`
			} `json:"table"`
			Fields []struct {
				Field  string `json:"field"`
				Status string `json:"status"`
			} `json:"fields"`
		}
		require.NoError(t, json.Unmarshal([]byte(body), &got))
		assert.Equal(t, []string{"PO", "bad"}, got.Table.Columns)
		assert.Equal(t, [][]string{{"77", ""}}, got.Table.Rows)
		require.Len(t, got.Fields, 2)
		assert.Equal(t, "invalid_pattern", got.Fields[1].Status)
	})
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, "")

	resp, body := env.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok","version":"test"}`, body)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	env.get(t, "/")
	resp, body = env.get(t, "/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "order_intake_http_request_duration_seconds")
	assert.Contains(t, body, `route="GET /healthz"`)
}
