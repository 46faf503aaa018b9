package http

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// InvalidParamFormatError reports a path or query parameter that does not
// match the type openapi.yaml declares for it.
type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("Invalid format for parameter %s: %s", e.ParamName, e.Err.Error())
}

func (e *InvalidParamFormatError) Unwrap() error {
	return e.Err
}

// pathParam binds the simple-style path parameter name into dest.
// Values are path-unescaped, so ids may contain reserved characters.
func pathParam(r *http.Request, name string, dest any) error {
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), dest, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Explode:       false,
		Required:      true,
	})
	if err != nil {
		return &InvalidParamFormatError{ParamName: name, Err: err}
	}
	return nil
}

// queryParam binds the optional form-style query parameter name into dest.
// Arrays are comma separated. dest is left untouched when the parameter is absent.
func queryParam(r *http.Request, name string, dest any) error {
	if err := runtime.BindQueryParameter("form", false, false, name, r.URL.Query(), dest); err != nil {
		return &InvalidParamFormatError{ParamName: name, Err: err}
	}
	return nil
}

// bindPath binds a path parameter, answering 400 when it is malformed.
func (s *Server) bindPath(w http.ResponseWriter, r *http.Request, name string, dest any) bool {
	if err := pathParam(r, name, dest); err != nil {
		s.fail(w, err, http.StatusBadRequest)
		return false
	}
	return true
}

// bindQuery binds a query parameter, answering 400 when it is malformed.
func (s *Server) bindQuery(w http.ResponseWriter, r *http.Request, name string, dest any) bool {
	if err := queryParam(r, name, dest); err != nil {
		s.fail(w, err, http.StatusBadRequest)
		return false
	}
	return true
}
