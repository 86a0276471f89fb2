package chi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"go.uber.org/zap"

	logpkg "github.com/kailas-cloud/eslayer/internal/logger"
)

// resourceName binds the {name} path parameter as declared in api/openapi.yaml
// (simple style, required). A malformed value is answered with 400.
func (s *Server) resourceName(w http.ResponseWriter, r *http.Request) (string, bool) {
	var name string
	err := runtime.BindStyledParameterWithOptions("simple", "name", chi.URLParam(r, "name"), &name,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false})
	if err != nil {
		logpkg.FromContextOr(r.Context(), s.logger).Debug("invalid path parameter", zap.Error(err))
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid format for parameter name")
		return "", false
	}
	return name, true
}
