package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/aprendices-roster/internal/models"
	"github.com/noah-isme/aprendices-roster/internal/repository"
	"github.com/noah-isme/aprendices-roster/internal/service"
	"github.com/noah-isme/aprendices-roster/pkg/debounce"
	"github.com/noah-isme/aprendices-roster/pkg/storage"
)

const testFeed = `[
  {"documento": "1", "nombre": "Ana Pérez", "codigo_ficha": "2024-1", "programa": "ADSO", "estado_aprendiz": "Formacion"},
  {"documento": "2", "nombre": "Luis Gómez", "codigo_ficha": "2024-1", "programa": "ADSO", "estado_aprendiz": "Retiro Voluntario"},
  {"documento": "3", "nombre": "Marta Ruiz", "codigo_ficha": "2024-2", "programa": "Contabilidad", "estado_aprendiz": "Cancelado"}
]`

type appFixture struct {
	server    *httptest.Server
	client    *http.Client
	scheduler *debounce.FakeScheduler
	viewers   *service.ViewerService
}

type appOptions struct {
	feedStatus int
	exports    bool
	checks     map[string]ReadinessCheck
}

type apiEnvelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Meta struct {
		Notifications []models.Notification `json:"notifications"`
		Total         int                   `json:"total"`
	} `json:"meta"`
}

func newAppFixture(t *testing.T, opts appOptions) *appFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if opts.feedStatus != 0 {
			w.WriteHeader(opts.feedStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(testFeed))
	}))
	t.Cleanup(feed.Close)

	auth, err := service.NewAuthService(nil, nil, service.AuthConfig{
		SharedPassword: "adso3064975",
		TokenSecret:    "handler-secret",
		BcryptCost:     bcrypt.MinCost,
	})
	require.NoError(t, err)

	metrics := service.NewMetricsService()
	roster := service.NewRosterService(repository.NewRosterRepository(feed.URL, feed.Client(), 0, nil), nil, 0, metrics, nil)
	scheduler := debounce.NewFakeScheduler()
	viewers := service.NewViewerService(service.ViewerDeps{
		Roster:    roster,
		Auth:      auth,
		Durable:   repository.NewMemoryStore(0),
		Session:   repository.NewMemoryStore(0),
		Metrics:   metrics,
		Scheduler: scheduler,
	}, service.ViewerConfig{SearchDebounce: 500 * time.Millisecond, SearchMinChars: 2, SearchHistoryLimit: 10})

	handlers := Handlers{
		Page:    NewPageHandler(viewers, opts.exports, nil),
		Viewer:  NewViewerHandler(viewers, 500*time.Millisecond),
		Metrics: NewMetricsHandler(metrics, opts.checks),
	}
	if opts.exports {
		files, err := storage.NewLocalStorage(t.TempDir())
		require.NoError(t, err)
		exports := service.NewExportService(files, storage.NewSignedURLSigner("export-secret", time.Minute), service.ExportConfig{}, nil, nil, nil)
		handlers.Export = NewExportHandler(viewers, exports)
	}

	router, err := NewRouter(RouterConfig{}, nil, metrics, auth, handlers)
	require.NoError(t, err)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &appFixture{
		server:    server,
		client:    &http.Client{Jar: jar},
		scheduler: scheduler,
		viewers:   viewers,
	}
}

// postForm submits a form and returns the page the redirect lands on.
func (f *appFixture) postForm(t *testing.T, path string, values url.Values) *goquery.Document {
	t.Helper()
	resp, err := f.client.PostForm(f.server.URL+path, values)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "/", resp.Request.URL.Path)

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	require.NoError(t, err)
	return doc
}

func (f *appFixture) page(t *testing.T) *goquery.Document {
	t.Helper()
	resp, err := f.client.Get(f.server.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	require.NoError(t, err)
	return doc
}

func (f *appFixture) api(t *testing.T, method, path string, payload interface{}) (int, apiEnvelope) {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	req, err := http.NewRequest(method, f.server.URL+"/api/v1"+path, &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var envelope apiEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return resp.StatusCode, envelope
}

func notificationTexts(doc *goquery.Document) []string {
	var texts []string
	doc.Find("#notifications .notification").Each(func(_ int, s *goquery.Selection) {
		texts = append(texts, strings.TrimSpace(s.Text()))
	})
	return texts
}

func decodeData(t *testing.T, envelope apiEnvelope, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(envelope.Data, dest))
}
