package cmd_test

import (
	"context"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/jrwilson/substrate/cmd"
	"github.com/jrwilson/substrate/internal/metrics"
	"github.com/jrwilson/substrate/session"
	"github.com/jrwilson/substrate/storage"
)

var _ = Describe("RegisterRoutes", func() {
	var (
		router *gin.Engine
		store  *storage.InmemoryStore
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)

		store = storage.NewInmemoryStore(zap.NewNop())

		registry := prometheus.NewRegistry()
		m := metrics.New(registry)
		m.SessionStarted("tcp")

		router = gin.New()
		cmd.RegisterRoutes(router, store, registry, nil)
	})

	AfterEach(func() {
		Expect(store.Close()).To(Succeed())
	})

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req, err := http.NewRequest(http.MethodGet, path, nil)
		Expect(err).To(Succeed())

		router.ServeHTTP(w, req)
		return w
	}

	It("answers pings", func() {
		w := get("/ping")
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(Equal("pong"))
	})

	It("lists sessions", func() {
		Expect(store.Put(context.Background(), "tcp-1", session.Status{Role: "server", State: "NORMAL"})).To(Succeed())

		w := get("/sessions")
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(gjson.Get(w.Body.String(), "tcp-1.state").String()).To(Equal("NORMAL"))
	})

	It("returns a single session", func() {
		Expect(store.Put(context.Background(), "ws-3", session.Status{Role: "server", State: "RECV_VERSION"})).To(Succeed())

		w := get("/sessions/ws-3")
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(gjson.Get(w.Body.String(), "state").String()).To(Equal("RECV_VERSION"))
	})

	It("404s on unknown sessions", func() {
		w := get("/sessions/tcp-9")
		Expect(w.Code).To(Equal(http.StatusNotFound))
	})

	It("exposes metrics", func() {
		w := get("/metrics")
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(ContainSubstring(`rfb_active_sessions{transport="tcp"} 1`))
	})

	It("reports the build", func() {
		w := get("/version")
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(gjson.Get(w.Body.String(), "goVersion").String()).NotTo(BeEmpty())
	})
})
