package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/taxoclass/internal/domain"
	domcat "github.com/kailas-cloud/taxoclass/internal/domain/category"
	"github.com/kailas-cloud/taxoclass/internal/domain/classification"
	"github.com/kailas-cloud/taxoclass/internal/domain/eligibility"
	domexcl "github.com/kailas-cloud/taxoclass/internal/domain/exclusion"
	domprod "github.com/kailas-cloud/taxoclass/internal/domain/product"
	domprof "github.com/kailas-cloud/taxoclass/internal/domain/profile"
	"github.com/kailas-cloud/taxoclass/internal/logger"
	catalogu "github.com/kailas-cloud/taxoclass/internal/usecase/catalog"
	classifyuc "github.com/kailas-cloud/taxoclass/internal/usecase/classify"
	healthuc "github.com/kailas-cloud/taxoclass/internal/usecase/health"
	indexinguc "github.com/kailas-cloud/taxoclass/internal/usecase/indexing"
	searchuc "github.com/kailas-cloud/taxoclass/internal/usecase/search"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server implements ServerInterface.
type Server struct {
	catalog       *catalogu.Service
	classify      *classifyuc.Service
	indexing      *indexinguc.Service
	search        *searchuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

var _ ServerInterface = (*Server)(nil)

// NewServer creates an HTTP API server.
func NewServer(
	catalog *catalogu.Service,
	classify *classifyuc.Service,
	indexing *indexinguc.Service,
	search *searchuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		catalog:  catalog,
		classify: classify,
		indexing: indexing,
		search:   search,
		health:   health,
		logger:   logger,
	}
	// Порядок важен: более узкие sentinel-ы раньше общих.
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrProductNotFound, http.StatusNotFound, ErrorCodeProductNotFound),
		sentinelHandler(domain.ErrCategoryNotFound, http.StatusNotFound, ErrorCodeCategoryNotFound),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, ErrorCodeNotFound),
		sentinelHandler(domain.ErrCycle, http.StatusConflict, ErrorCodeHierarchyCycle),
		sentinelHandler(domain.ErrValidation, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrDuplicateContent, http.StatusConflict, ErrorCodeDuplicateContent),
		sentinelHandler(domain.ErrNoEligibleCategories, http.StatusUnprocessableEntity, ErrorCodeNoEligibleCategories),
		sentinelHandler(domain.ErrNoEligibleMatches, http.StatusUnprocessableEntity, ErrorCodeNoEligibleMatches),
		sentinelHandler(domain.ErrIndexNotInitialized, http.StatusServiceUnavailable, ErrorCodeIndexNotReady),
		sentinelHandler(domain.ErrCircuitOpen, http.StatusServiceUnavailable, ErrorCodeEmbeddingUnavailable),
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusBadGateway, ErrorCodeVectorDimMismatch),
		sentinelHandler(domain.ErrPermanentDependency, http.StatusBadGateway, ErrorCodeDependencyError),
		sentinelHandler(domain.ErrTransientDependency, http.StatusServiceUnavailable, ErrorCodeDependencyUnavailable),
	}
	return s
}

// CreateCategory handles POST /categories.
func (s *Server) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CreateCategoryRequest
	if !decodeBody(w, r, &req) {
		return
	}

	parent, err := parseOptionalID(req.ParentID)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "parent_id must be a UUID")
		return
	}

	c, err := s.catalog.CreateCategory(r.Context(), catalogu.CategoryInput{
		Name:        req.Name,
		Description: req.Description,
		Keywords:    req.Keywords,
		ParentID:    parent,
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, categoryToAPI(c))
}

// ListCategories handles GET /categories.
func (s *Server) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.catalog.ListCategories(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]Category, len(cats))
	for i, c := range cats {
		items[i] = categoryToAPI(c)
	}
	writeJSON(w, http.StatusOK, CategoryListResponse{Items: items})
}

// GetCategory handles GET /categories/{id}.
func (s *Server) GetCategory(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	c, err := s.catalog.GetCategory(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, categoryToAPI(c))
}

// ReparentCategory handles PUT /categories/{id}/parent.
func (s *Server) ReparentCategory(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	var req ReparentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	parent, err := parseOptionalID(req.ParentID)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "parent_id must be a UUID")
		return
	}

	c, err := s.catalog.ReparentCategory(r.Context(), id, parent)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, categoryToAPI(c))
}

// UpsertProfile handles PUT /categories/{id}/profile.
func (s *Server) UpsertProfile(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	var req ProfileRequest
	if !decodeBody(w, r, &req) {
		return
	}

	constraints := eligibility.Constraints{
		Genders:       eligibility.FromSlice(derefSlice(req.Genders)),
		BusinessTypes: eligibility.FromSlice(derefSlice(req.BusinessTypes)),
	}
	p, err := s.catalog.UpsertProfile(r.Context(), id, req.Keywords, constraints)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profileToAPI(p))
}

// GetProfile handles GET /categories/{id}/profile.
func (s *Server) GetProfile(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	p, err := s.catalog.GetProfile(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profileToAPI(p))
}

// CreateProduct handles POST /products.
func (s *Server) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if !decodeBody(w, r, &req) {
		return
	}

	p, err := s.catalog.CreateProduct(r.Context(), catalogu.ProductInput{
		Title:        req.Title,
		Description:  req.Description,
		Keywords:     req.Keywords,
		Gender:       req.Gender,
		BusinessType: req.BusinessType,
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, productToAPI(p))
}

// GetProduct handles GET /products/{id}.
func (s *Server) GetProduct(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	p, err := s.catalog.GetProduct(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, productToAPI(p))
}

// AddExclusion handles POST /products/{id}/exclusions.
func (s *Server) AddExclusion(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	var req AddExclusionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	catID, err := uuid.Parse(req.CategoryID)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "category_id must be a UUID")
		return
	}

	e, err := s.catalog.AddExclusion(r.Context(), id, catID, req.Reason)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, exclusionToAPI(e))
}

// RemoveExclusion handles DELETE /products/{id}/exclusions/{categoryId}.
func (s *Server) RemoveExclusion(w http.ResponseWriter, r *http.Request, id, categoryID uuid.UUID) {
	if err := s.catalog.RemoveExclusion(r.Context(), id, categoryID); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListExclusions handles GET /products/{id}/exclusions.
func (s *Server) ListExclusions(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	list, err := s.catalog.ListExclusions(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]Exclusion, len(list))
	for i, e := range list {
		items[i] = exclusionToAPI(e)
	}
	writeJSON(w, http.StatusOK, ExclusionListResponse{Items: items})
}

// ClassifyProduct handles POST /products/{id}/classify.
func (s *Server) ClassifyProduct(w http.ResponseWriter, r *http.Request, id uuid.UUID, params ClassifyProductParams) {
	ctx, usage := domain.NewContextWithUsage(r.Context())
	res, err := s.classify.Classify(ctx, id, derefInt(params.TopK))
	setEmbeddingHeaders(w, usage)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, classificationToAPI(res))
}

// RebuildIndex handles POST /index/rebuild.
func (s *Server) RebuildIndex(w http.ResponseWriter, r *http.Request) {
	ctx, usage := domain.NewContextWithUsage(r.Context())
	n, err := s.indexing.Rebuild(ctx)
	setEmbeddingHeaders(w, usage)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RebuildResponse{Indexed: n})
}

// SearchCategories handles GET /search/categories.
func (s *Server) SearchCategories(w http.ResponseWriter, r *http.Request, params SearchCategoriesParams) {
	var minScore float64
	if params.MinScore != nil {
		minScore = *params.MinScore
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	results, err := s.search.Categories(ctx, params.Q, derefInt(params.Limit), minScore)
	setEmbeddingHeaders(w, usage)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]SearchHit, len(results))
	for i, res := range results {
		items[i] = SearchHit{Category: categoryToAPI(res.Category), Score: res.Score}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Items: items})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status:         string(report.Status),
		Checks:         checks,
		CircuitBreaker: report.Breaker,
		Index:          IndexStatus{Ready: report.IndexReady, Size: report.IndexSize},
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// setEmbeddingHeaders reports provider tokens spent by the request. Fallback
// vectors and cache hits count as used with zero tokens.
func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage.Used() {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.Tokens()))
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
// The client sees the sentinel text, never the wrapped internals.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, safeMessage(err, sentinel))
		return true
	}
}

// safeMessage exposes validation details (user input) but only the sentinel text otherwise.
func safeMessage(err, sentinel error) string {
	if errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrDuplicateContent) {
		return err.Error()
	}
	return sentinel.Error()
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContextOr(r.Context(), s.logger)
	for _, h := range s.errorHandlers {
		if h(w, err) {
			log.Warn("domain error", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}

func categoryToAPI(c domcat.Category) Category {
	var parent *string
	if !c.IsRoot() {
		p := c.ParentID().String()
		parent = &p
	}
	return Category{
		ID:           c.ID().String(),
		Name:         c.Name(),
		Description:  c.Description(),
		Keywords:     c.Keywords(),
		ParentID:     parent,
		SemanticHash: c.SemanticHash().String(),
		CreatedAt:    time.UnixMilli(c.CreatedAt()).UTC(),
	}
}

func profileToAPI(p domprof.Profile) Profile {
	c := p.Constraints()
	return Profile{
		CategoryID:    p.CategoryID().String(),
		Keywords:      p.Keywords(),
		Genders:       c.Genders.Values(),
		BusinessTypes: c.BusinessTypes.Values(),
		UpdatedAt:     time.UnixMilli(p.UpdatedAt()).UTC(),
	}
}

func productToAPI(p domprod.Product) Product {
	return Product{
		ID:           p.ID().String(),
		Title:        p.Title(),
		Description:  p.Description(),
		Keywords:     p.Keywords(),
		Gender:       p.Gender(),
		BusinessType: p.BusinessType(),
		CreatedAt:    time.UnixMilli(p.CreatedAt()).UTC(),
	}
}

func exclusionToAPI(e domexcl.Exclusion) Exclusion {
	return Exclusion{
		ProductID:  e.ProductID().String(),
		CategoryID: e.CategoryID().String(),
		Reason:     e.Reason(),
	}
}

func classificationToAPI(res classification.Result) ClassificationResponse {
	top := res.TopK()
	matches := make([]Match, len(top))
	for i, m := range top {
		matches[i] = Match{CategoryID: m.CategoryID().String(), Score: m.Score()}
	}
	best := res.Best()
	return ClassificationResponse{
		ProductID: res.ProductID().String(),
		Best:      Match{CategoryID: best.CategoryID().String(), Score: best.Score()},
		Matches:   matches,
	}
}

func parseOptionalID(s *string) (uuid.UUID, error) {
	if s == nil || *s == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(*s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse id: %w", err)
	}
	return id, nil
}

func derefSlice(p *[]string) []string {
	if p == nil {
		return nil
	}
	if *p == nil {
		return []string{}
	}
	return *p
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
