package chi

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime"
)

// ServerInterface lists every API operation.
type ServerInterface interface {
	// (POST /categories)
	CreateCategory(w http.ResponseWriter, r *http.Request)
	// (GET /categories)
	ListCategories(w http.ResponseWriter, r *http.Request)
	// (GET /categories/{id})
	GetCategory(w http.ResponseWriter, r *http.Request, id uuid.UUID)
	// (PUT /categories/{id}/parent)
	ReparentCategory(w http.ResponseWriter, r *http.Request, id uuid.UUID)
	// (PUT /categories/{id}/profile)
	UpsertProfile(w http.ResponseWriter, r *http.Request, id uuid.UUID)
	// (GET /categories/{id}/profile)
	GetProfile(w http.ResponseWriter, r *http.Request, id uuid.UUID)
	// (POST /products)
	CreateProduct(w http.ResponseWriter, r *http.Request)
	// (GET /products/{id})
	GetProduct(w http.ResponseWriter, r *http.Request, id uuid.UUID)
	// (POST /products/{id}/exclusions)
	AddExclusion(w http.ResponseWriter, r *http.Request, id uuid.UUID)
	// (DELETE /products/{id}/exclusions/{categoryId})
	RemoveExclusion(w http.ResponseWriter, r *http.Request, id uuid.UUID, categoryID uuid.UUID)
	// (GET /products/{id}/exclusions)
	ListExclusions(w http.ResponseWriter, r *http.Request, id uuid.UUID)
	// (POST /products/{id}/classify)
	ClassifyProduct(w http.ResponseWriter, r *http.Request, id uuid.UUID, params ClassifyProductParams)
	// (POST /index/rebuild)
	RebuildIndex(w http.ResponseWriter, r *http.Request)
	// (GET /search/categories)
	SearchCategories(w http.ResponseWriter, r *http.Request, params SearchCategoriesParams)
	// (GET /health)
	HealthCheck(w http.ResponseWriter, r *http.Request)
	// (GET /metrics)
	Metrics(w http.ResponseWriter, r *http.Request)
}

// InvalidParamFormatError reports a path or query parameter that failed to bind.
type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("Invalid format for parameter %s: %s", e.ParamName, e.Err.Error())
}

func (e *InvalidParamFormatError) Unwrap() error { return e.Err }

// ChiServerOptions configures HandlerWithOptions.
type ChiServerOptions struct {
	BaseURL          string
	BaseRouter       chi.Router
	Middlewares      []func(http.Handler) http.Handler
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// Handler creates an http.Handler with routing matching the API.
func Handler(si ServerInterface) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{})
}

// HandlerWithOptions mounts every route on options.BaseRouter (a new router when nil).
func HandlerWithOptions(si ServerInterface, options ChiServerOptions) http.Handler {
	r := options.BaseRouter
	if r == nil {
		r = chi.NewRouter()
	}
	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = func(w http.ResponseWriter, _ *http.Request, err error) {
			writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, err.Error())
		}
	}
	w := &wrapper{
		handler:     si,
		middlewares: options.Middlewares,
		onError:     options.ErrorHandlerFunc,
	}

	base := options.BaseURL
	r.Post(base+"/categories", w.plain(si.CreateCategory))
	r.Get(base+"/categories", w.plain(si.ListCategories))
	r.Get(base+"/categories/{id}", w.withID(si.GetCategory))
	r.Put(base+"/categories/{id}/parent", w.withID(si.ReparentCategory))
	r.Put(base+"/categories/{id}/profile", w.withID(si.UpsertProfile))
	r.Get(base+"/categories/{id}/profile", w.withID(si.GetProfile))
	r.Post(base+"/products", w.plain(si.CreateProduct))
	r.Get(base+"/products/{id}", w.withID(si.GetProduct))
	r.Post(base+"/products/{id}/exclusions", w.withID(si.AddExclusion))
	r.Get(base+"/products/{id}/exclusions", w.withID(si.ListExclusions))
	r.Delete(base+"/products/{id}/exclusions/{categoryId}", w.RemoveExclusion)
	r.Post(base+"/products/{id}/classify", w.ClassifyProduct)
	r.Post(base+"/index/rebuild", w.plain(si.RebuildIndex))
	r.Get(base+"/search/categories", w.SearchCategories)
	r.Get(base+"/health", w.plain(si.HealthCheck))
	r.Get(base+"/metrics", w.plain(si.Metrics))
	return r
}

// wrapper binds parameters before calling ServerInterface.
type wrapper struct {
	handler     ServerInterface
	middlewares []func(http.Handler) http.Handler
	onError     func(w http.ResponseWriter, r *http.Request, err error)
}

func (w *wrapper) serve(rw http.ResponseWriter, r *http.Request, h http.HandlerFunc) {
	var handler http.Handler = h
	for _, m := range w.middlewares {
		handler = m(handler)
	}
	handler.ServeHTTP(rw, r)
}

func (w *wrapper) plain(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		w.serve(rw, r, fn)
	}
}

func (w *wrapper) withID(fn func(http.ResponseWriter, *http.Request, uuid.UUID)) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		id, err := bindPathID(r)
		if err != nil {
			w.onError(rw, r, err)
			return
		}
		w.serve(rw, r, func(rw http.ResponseWriter, r *http.Request) {
			fn(rw, r, id)
		})
	}
}

// RemoveExclusion binds {id} and {categoryId}.
func (w *wrapper) RemoveExclusion(rw http.ResponseWriter, r *http.Request) {
	id, err := bindPathID(r)
	if err != nil {
		w.onError(rw, r, err)
		return
	}
	categoryID, err := bindPathUUID(r, "categoryId")
	if err != nil {
		w.onError(rw, r, err)
		return
	}

	w.serve(rw, r, func(rw http.ResponseWriter, r *http.Request) {
		w.handler.RemoveExclusion(rw, r, id, categoryID)
	})
}

// ClassifyProduct binds {id} and top_k.
func (w *wrapper) ClassifyProduct(rw http.ResponseWriter, r *http.Request) {
	id, err := bindPathID(r)
	if err != nil {
		w.onError(rw, r, err)
		return
	}

	var params ClassifyProductParams
	if err := runtime.BindQueryParameter("form", true, false, "top_k", r.URL.Query(), &params.TopK); err != nil {
		w.onError(rw, r, &InvalidParamFormatError{ParamName: "top_k", Err: err})
		return
	}

	w.serve(rw, r, func(rw http.ResponseWriter, r *http.Request) {
		w.handler.ClassifyProduct(rw, r, id, params)
	})
}

// SearchCategories binds q, limit and min_score.
func (w *wrapper) SearchCategories(rw http.ResponseWriter, r *http.Request) {
	var params SearchCategoriesParams
	query := r.URL.Query()

	if err := runtime.BindQueryParameter("form", true, true, "q", query, &params.Q); err != nil {
		w.onError(rw, r, &InvalidParamFormatError{ParamName: "q", Err: err})
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "limit", query, &params.Limit); err != nil {
		w.onError(rw, r, &InvalidParamFormatError{ParamName: "limit", Err: err})
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "min_score", query, &params.MinScore); err != nil {
		w.onError(rw, r, &InvalidParamFormatError{ParamName: "min_score", Err: err})
		return
	}

	w.serve(rw, r, func(rw http.ResponseWriter, r *http.Request) {
		w.handler.SearchCategories(rw, r, params)
	})
}

func bindPathID(r *http.Request) (uuid.UUID, error) {
	return bindPathUUID(r, "id")
}

func bindPathUUID(r *http.Request, name string) (uuid.UUID, error) {
	var id uuid.UUID
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		return uuid.Nil, &InvalidParamFormatError{ParamName: name, Err: err}
	}
	return id, nil
}
