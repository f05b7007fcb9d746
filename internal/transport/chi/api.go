package chi

import "time"

// ErrorCode is the machine-readable error code in ErrorResponse.
type ErrorCode string

// Error codes.
const (
	ErrorCodeBadRequest            ErrorCode = "bad_request"
	ErrorCodeUnauthorized          ErrorCode = "unauthorized"
	ErrorCodeValidationFailed      ErrorCode = "validation_failed"
	ErrorCodeNotFound              ErrorCode = "not_found"
	ErrorCodeProductNotFound       ErrorCode = "product_not_found"
	ErrorCodeCategoryNotFound      ErrorCode = "category_not_found"
	ErrorCodeDuplicateContent      ErrorCode = "duplicate_content"
	ErrorCodeHierarchyCycle        ErrorCode = "hierarchy_cycle"
	ErrorCodeNoEligibleCategories  ErrorCode = "no_eligible_categories"
	ErrorCodeNoEligibleMatches     ErrorCode = "no_eligible_matches"
	ErrorCodeEmbeddingUnavailable  ErrorCode = "embedding_unavailable"
	ErrorCodeIndexNotReady         ErrorCode = "index_not_ready"
	ErrorCodeVectorDimMismatch     ErrorCode = "vector_dim_mismatch"
	ErrorCodeDependencyUnavailable ErrorCode = "dependency_unavailable"
	ErrorCodeDependencyError       ErrorCode = "dependency_error"
	ErrorCodeInternalError         ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// CreateCategoryRequest is the body of POST /categories.
type CreateCategoryRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords,omitempty"`
	ParentID    *string  `json:"parent_id,omitempty"`
}

// ReparentRequest is the body of PUT /categories/{id}/parent. Null parent = root.
type ReparentRequest struct {
	ParentID *string `json:"parent_id"`
}

// Category is the category representation.
type Category struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Keywords     []string  `json:"keywords"`
	ParentID     *string   `json:"parent_id"`
	SemanticHash string    `json:"semantic_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// CategoryListResponse wraps GET /categories.
type CategoryListResponse struct {
	Items []Category `json:"items"`
}

// ProfileRequest is the body of PUT /categories/{id}/profile.
// An absent or null constraint list is unrestricted; [] admits nothing.
type ProfileRequest struct {
	Keywords      []string  `json:"keywords,omitempty"`
	Genders       *[]string `json:"genders,omitempty"`
	BusinessTypes *[]string `json:"business_types,omitempty"`
}

// Profile is the classification profile representation.
type Profile struct {
	CategoryID    string    `json:"category_id"`
	Keywords      []string  `json:"keywords"`
	Genders       []string  `json:"genders"`
	BusinessTypes []string  `json:"business_types"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CreateProductRequest is the body of POST /products.
type CreateProductRequest struct {
	Title        string   `json:"title"`
	Description  string   `json:"description,omitempty"`
	Keywords     []string `json:"keywords,omitempty"`
	Gender       string   `json:"gender,omitempty"`
	BusinessType string   `json:"business_type,omitempty"`
}

// Product is the product representation.
type Product struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Keywords     []string  `json:"keywords"`
	Gender       string    `json:"gender,omitempty"`
	BusinessType string    `json:"business_type,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// AddExclusionRequest is the body of POST /products/{id}/exclusions.
type AddExclusionRequest struct {
	CategoryID string `json:"category_id"`
	Reason     string `json:"reason,omitempty"`
}

// Exclusion is the exclusion representation.
type Exclusion struct {
	ProductID  string `json:"product_id"`
	CategoryID string `json:"category_id"`
	Reason     string `json:"reason,omitempty"`
}

// ExclusionListResponse wraps GET /products/{id}/exclusions.
type ExclusionListResponse struct {
	Items []Exclusion `json:"items"`
}

// Match is one ranked category.
type Match struct {
	CategoryID string  `json:"category_id"`
	Score      float64 `json:"score"`
}

// ClassificationResponse is the body of POST /products/{id}/classify.
type ClassificationResponse struct {
	ProductID string  `json:"product_id"`
	Best      Match   `json:"best"`
	Matches   []Match `json:"matches"`
}

// ClassifyProductParams are the query parameters of POST /products/{id}/classify.
type ClassifyProductParams struct {
	TopK *int `form:"top_k,omitempty" json:"top_k,omitempty"`
}

// RebuildResponse is the body of POST /index/rebuild.
type RebuildResponse struct {
	Indexed int `json:"indexed"`
}

// SearchCategoriesParams are the query parameters of GET /search/categories.
type SearchCategoriesParams struct {
	Q        string   `form:"q" json:"q"`
	Limit    *int     `form:"limit,omitempty" json:"limit,omitempty"`
	MinScore *float64 `form:"min_score,omitempty" json:"min_score,omitempty"`
}

// SearchHit is one category search result.
type SearchHit struct {
	Category Category `json:"category"`
	Score    float64  `json:"score"`
}

// SearchResponse is the body of GET /search/categories.
type SearchResponse struct {
	Items []SearchHit `json:"items"`
}

// IndexStatus reports vector index readiness.
type IndexStatus struct {
	Ready bool `json:"ready"`
	Size  int  `json:"size"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status         string            `json:"status"`
	Checks         map[string]string `json:"checks"`
	CircuitBreaker string            `json:"circuit_breaker,omitempty"`
	Index          IndexStatus       `json:"index"`
}
