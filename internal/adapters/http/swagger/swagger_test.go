package swagger_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/okian/elorank/internal/adapters/http/swagger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSwaggerRegister(t *testing.T) {
	Convey("Given a router with the OpenAPI route", t, func() {
		r := mux.NewRouter()
		swagger.Register(context.Background(), r)

		Convey("When GET /openapi.yaml", func() {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil))

			Convey("Then the embedded document is served", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Header().Get("Content-Type"), ShouldContainSubstring, "application/yaml")
				So(rec.Body.String(), ShouldContainSubstring, "/ratings/{team}")
			})
		})

		Convey("When POST /openapi.yaml", func() {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/openapi.yaml", nil))

			Convey("Then the method is rejected", func() {
				So(rec.Code, ShouldEqual, http.StatusMethodNotAllowed)
			})
		})
	})

	Convey("Given a nil router", t, func() {
		So(func() { swagger.Register(context.Background(), nil) }, ShouldPanic)
	})
}
