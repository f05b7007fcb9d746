package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kailas-cloud/taxoclass/internal/db/sqlite"
	"github.com/kailas-cloud/taxoclass/internal/domain"
	"github.com/kailas-cloud/taxoclass/internal/domain/semhash"
	catrepo "github.com/kailas-cloud/taxoclass/internal/repository/category"
	"github.com/kailas-cloud/taxoclass/internal/repository/embrecord"
	exclrepo "github.com/kailas-cloud/taxoclass/internal/repository/exclusion"
	"github.com/kailas-cloud/taxoclass/internal/repository/idmap"
	prodrepo "github.com/kailas-cloud/taxoclass/internal/repository/product"
	profrepo "github.com/kailas-cloud/taxoclass/internal/repository/profile"
	catalogu "github.com/kailas-cloud/taxoclass/internal/usecase/catalog"
	classifyuc "github.com/kailas-cloud/taxoclass/internal/usecase/classify"
	"github.com/kailas-cloud/taxoclass/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/taxoclass/internal/usecase/health"
	indexinguc "github.com/kailas-cloud/taxoclass/internal/usecase/indexing"
	searchuc "github.com/kailas-cloud/taxoclass/internal/usecase/search"
	"github.com/kailas-cloud/taxoclass/internal/vectorindex"
)

const testDim = 16

// newTestHandler wires the whole API over a temp SQLite file and the
// deterministic fallback embedder. The index starts uninitialized.
func newTestHandler(t *testing.T) http.Handler {
	t.Helper()

	ctx := context.Background()
	store, err := sqlite.NewStore(ctx, sqlite.Config{Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(store.Close)

	hasher, err := semhash.New(semhash.English)
	if err != nil {
		t.Fatalf("hasher: %v", err)
	}

	categories := catrepo.New(store)
	profiles := profrepo.New(store)
	products := prodrepo.New(store)
	exclusions := exclrepo.New(store)
	idx := vectorindex.New(idmap.New(store), store, "index:categories")

	emb := embedding.NewResilientEmbedder(nil, embedding.ResilientConfig{
		Provider:   "test",
		Dimensions: testDim,
		Fallback:   true,
	})

	srv := NewServer(
		catalogu.New(categories, profiles, products, exclusions, hasher, nil),
		classifyuc.New(products, profiles, exclusions, emb, idx, classifyuc.Config{}, nil),
		indexinguc.New(categories, profiles, embrecord.New(store), emb, idx, hasher, testDim, nil),
		searchuc.New(idx, categories, emb),
		healthuc.New(store, emb, emb, idx),
		nil,
	)
	return Handler(srv)
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode %T: %v (body %q)", v, err, rr.Body.String())
	}
	return v
}

func expectError(t *testing.T, rr *httptest.ResponseRecorder, status int, code ErrorCode) {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("status: got %d, want %d (body %s)", rr.Code, status, rr.Body.String())
	}
	resp := decode[ErrorResponse](t, rr)
	if resp.Code != code {
		t.Errorf("code: got %s, want %s", resp.Code, code)
	}
}

func createCategory(t *testing.T, h http.Handler, req CreateCategoryRequest) Category {
	t.Helper()
	rr := do(t, h, http.MethodPost, "/categories", req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create category %q: got %d (body %s)", req.Name, rr.Code, rr.Body.String())
	}
	return decode[Category](t, rr)
}

func createProduct(t *testing.T, h http.Handler, req CreateProductRequest) Product {
	t.Helper()
	rr := do(t, h, http.MethodPost, "/products", req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create product: got %d (body %s)", rr.Code, rr.Body.String())
	}
	return decode[Product](t, rr)
}

func putProfile(t *testing.T, h http.Handler, catID string, req ProfileRequest) {
	t.Helper()
	rr := do(t, h, http.MethodPut, "/categories/"+catID+"/profile", req)
	if rr.Code != http.StatusOK {
		t.Fatalf("put profile: got %d (body %s)", rr.Code, rr.Body.String())
	}
}

func strPtr(s string) *string { return &s }

func TestCategories_CreateGetList(t *testing.T) {
	h := newTestHandler(t)

	root := createCategory(t, h, CreateCategoryRequest{
		Name:        "Fashion",
		Description: "Clothing and accessories",
		Keywords:    []string{"Style", "style"},
	})
	if root.ParentID != nil {
		t.Errorf("root parent: got %v, want nil", *root.ParentID)
	}
	if root.SemanticHash == "" {
		t.Error("semantic hash is empty")
	}

	child := createCategory(t, h, CreateCategoryRequest{
		Name:        "Shoes",
		Description: "Footwear for walking",
		ParentID:    strPtr(root.ID),
	})
	if child.ParentID == nil || *child.ParentID != root.ID {
		t.Errorf("child parent: got %v, want %s", child.ParentID, root.ID)
	}

	rr := do(t, h, http.MethodGet, "/categories/"+child.ID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get: got %d", rr.Code)
	}
	if got := decode[Category](t, rr); got.Name != "Shoes" {
		t.Errorf("name: got %q", got.Name)
	}

	rr = do(t, h, http.MethodGet, "/categories", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list: got %d", rr.Code)
	}
	if list := decode[CategoryListResponse](t, rr); len(list.Items) != 2 {
		t.Errorf("list: got %d items, want 2", len(list.Items))
	}
}

func TestCategories_Errors(t *testing.T) {
	h := newTestHandler(t)
	createCategory(t, h, CreateCategoryRequest{Name: "Bags", Description: "Handbags and backpacks"})

	t.Run("unknown parent", func(t *testing.T) {
		rr := do(t, h, http.MethodPost, "/categories", CreateCategoryRequest{
			Name:        "Orphan",
			Description: "No such parent",
			ParentID:    strPtr("7f1c2a8e-3a0b-4d6e-9c1f-2b3d4e5f6a7b"),
		})
		expectError(t, rr, http.StatusNotFound, ErrorCodeCategoryNotFound)
	})

	t.Run("malformed parent", func(t *testing.T) {
		rr := do(t, h, http.MethodPost, "/categories", CreateCategoryRequest{
			Name:        "Orphan",
			Description: "Bad parent",
			ParentID:    strPtr("not-a-uuid"),
		})
		expectError(t, rr, http.StatusBadRequest, ErrorCodeValidationFailed)
	})

	t.Run("missing name", func(t *testing.T) {
		rr := do(t, h, http.MethodPost, "/categories", CreateCategoryRequest{Description: "x"})
		expectError(t, rr, http.StatusBadRequest, ErrorCodeValidationFailed)
	})

	t.Run("duplicate description", func(t *testing.T) {
		rr := do(t, h, http.MethodPost, "/categories", CreateCategoryRequest{
			Name:        "Bags again",
			Description: "handbags and backpacks",
		})
		expectError(t, rr, http.StatusConflict, ErrorCodeDuplicateContent)
	})

	t.Run("broken json", func(t *testing.T) {
		rr := do(t, h, http.MethodPost, "/categories", "{")
		expectError(t, rr, http.StatusBadRequest, ErrorCodeBadRequest)
	})

	t.Run("unknown id", func(t *testing.T) {
		rr := do(t, h, http.MethodGet, "/categories/7f1c2a8e-3a0b-4d6e-9c1f-2b3d4e5f6a7b", nil)
		expectError(t, rr, http.StatusNotFound, ErrorCodeCategoryNotFound)
	})

	t.Run("malformed id", func(t *testing.T) {
		rr := do(t, h, http.MethodGet, "/categories/42", nil)
		expectError(t, rr, http.StatusBadRequest, ErrorCodeBadRequest)
	})
}

func TestReparentCategory(t *testing.T) {
	h := newTestHandler(t)
	a := createCategory(t, h, CreateCategoryRequest{Name: "A", Description: "first level"})
	b := createCategory(t, h, CreateCategoryRequest{Name: "B", Description: "second level", ParentID: strPtr(a.ID)})
	c := createCategory(t, h, CreateCategoryRequest{Name: "C", Description: "third level", ParentID: strPtr(b.ID)})

	rr := do(t, h, http.MethodPut, "/categories/"+a.ID+"/parent", ReparentRequest{ParentID: strPtr(c.ID)})
	expectError(t, rr, http.StatusConflict, ErrorCodeHierarchyCycle)

	rr = do(t, h, http.MethodPut, "/categories/"+a.ID+"/parent", ReparentRequest{ParentID: strPtr(a.ID)})
	expectError(t, rr, http.StatusConflict, ErrorCodeHierarchyCycle)

	rr = do(t, h, http.MethodPut, "/categories/"+c.ID+"/parent", ReparentRequest{})
	if rr.Code != http.StatusOK {
		t.Fatalf("move to root: got %d (body %s)", rr.Code, rr.Body.String())
	}
	if got := decode[Category](t, rr); got.ParentID != nil {
		t.Errorf("parent after move: got %s, want nil", *got.ParentID)
	}
}

func TestProfile_RoundTrip(t *testing.T) {
	h := newTestHandler(t)
	cat := createCategory(t, h, CreateCategoryRequest{Name: "Dresses", Description: "Dresses for women"})

	rr := do(t, h, http.MethodGet, "/categories/"+cat.ID+"/profile", nil)
	expectError(t, rr, http.StatusNotFound, ErrorCodeNotFound)

	genders := []string{" Female "}
	putProfile(t, h, cat.ID, ProfileRequest{Keywords: []string{"gown"}, Genders: &genders})

	rr = do(t, h, http.MethodGet, "/categories/"+cat.ID+"/profile", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get profile: got %d", rr.Code)
	}
	p := decode[Profile](t, rr)
	if len(p.Genders) != 1 || p.Genders[0] != "female" {
		t.Errorf("genders: got %v, want [female]", p.Genders)
	}
	if p.BusinessTypes != nil {
		t.Errorf("business types: got %v, want unrestricted (null)", p.BusinessTypes)
	}

	rr = do(t, h, http.MethodPut, "/categories/7f1c2a8e-3a0b-4d6e-9c1f-2b3d4e5f6a7b/profile", ProfileRequest{})
	expectError(t, rr, http.StatusNotFound, ErrorCodeCategoryNotFound)
}

func TestProducts_AndExclusions(t *testing.T) {
	h := newTestHandler(t)
	cat := createCategory(t, h, CreateCategoryRequest{Name: "Hats", Description: "Headwear"})
	prod := createProduct(t, h, CreateProductRequest{Title: "Straw hat", Gender: "male"})

	rr := do(t, h, http.MethodGet, "/products/"+prod.ID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get product: got %d", rr.Code)
	}
	if got := decode[Product](t, rr); got.Title != "Straw hat" || got.Gender != "male" {
		t.Errorf("product: got %+v", got)
	}

	rr = do(t, h, http.MethodGet, "/products/7f1c2a8e-3a0b-4d6e-9c1f-2b3d4e5f6a7b", nil)
	expectError(t, rr, http.StatusNotFound, ErrorCodeProductNotFound)

	rr = do(t, h, http.MethodPost, "/products", CreateProductRequest{Title: "  "})
	expectError(t, rr, http.StatusBadRequest, ErrorCodeValidationFailed)

	rr = do(t, h, http.MethodPost, "/products/"+prod.ID+"/exclusions",
		AddExclusionRequest{CategoryID: cat.ID, Reason: "seasonal"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("add exclusion: got %d (body %s)", rr.Code, rr.Body.String())
	}

	rr = do(t, h, http.MethodPost, "/products/"+prod.ID+"/exclusions",
		AddExclusionRequest{CategoryID: "7f1c2a8e-3a0b-4d6e-9c1f-2b3d4e5f6a7b"})
	expectError(t, rr, http.StatusNotFound, ErrorCodeCategoryNotFound)

	rr = do(t, h, http.MethodGet, "/products/"+prod.ID+"/exclusions", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list exclusions: got %d", rr.Code)
	}
	list := decode[ExclusionListResponse](t, rr)
	if len(list.Items) != 1 || list.Items[0].CategoryID != cat.ID || list.Items[0].Reason != "seasonal" {
		t.Errorf("exclusions: got %+v", list.Items)
	}

	rr = do(t, h, http.MethodDelete, "/products/"+prod.ID+"/exclusions/"+cat.ID, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("remove exclusion: got %d (body %s)", rr.Code, rr.Body.String())
	}
	rr = do(t, h, http.MethodGet, "/products/"+prod.ID+"/exclusions", nil)
	if list := decode[ExclusionListResponse](t, rr); len(list.Items) != 0 {
		t.Errorf("exclusions after remove: got %+v", list.Items)
	}
}

func TestClassify_EndToEnd(t *testing.T) {
	h := newTestHandler(t)

	shoes := createCategory(t, h, CreateCategoryRequest{Name: "Shoes", Description: "Footwear for walking"})
	bags := createCategory(t, h, CreateCategoryRequest{Name: "Bags", Description: "Handbags and backpacks"})
	tools := createCategory(t, h, CreateCategoryRequest{Name: "Tools", Description: "Wholesale hardware"})
	createCategory(t, h, CreateCategoryRequest{Name: "Misc", Description: "Everything without a profile"})

	putProfile(t, h, shoes.ID, ProfileRequest{})
	putProfile(t, h, bags.ID, ProfileRequest{})
	b2b := []string{"b2b"}
	putProfile(t, h, tools.ID, ProfileRequest{BusinessTypes: &b2b})

	// Same rendered text as the Shoes category, so the fallback vectors coincide.
	prod := createProduct(t, h, CreateProductRequest{
		Title:        "Shoes",
		Description:  "Footwear for walking",
		BusinessType: "b2c",
	})
	rr := do(t, h, http.MethodPost, "/products/"+prod.ID+"/exclusions", AddExclusionRequest{CategoryID: bags.ID})
	if rr.Code != http.StatusCreated {
		t.Fatalf("add exclusion: got %d", rr.Code)
	}

	classifyPath := "/products/" + prod.ID + "/classify"

	rr = do(t, h, http.MethodPost, classifyPath, nil)
	expectError(t, rr, http.StatusServiceUnavailable, ErrorCodeIndexNotReady)

	rr = do(t, h, http.MethodGet, "/health", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("health before rebuild: got %d, want 503", rr.Code)
	}

	rr = do(t, h, http.MethodPost, "/index/rebuild", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("rebuild: got %d (body %s)", rr.Code, rr.Body.String())
	}
	if got := decode[RebuildResponse](t, rr); got.Indexed != 4 {
		t.Errorf("indexed: got %d, want 4", got.Indexed)
	}

	rr = do(t, h, http.MethodPost, classifyPath+"?top_k=3", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("classify: got %d (body %s)", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get("X-Embedding-Tokens"); got != "0" {
		t.Errorf("X-Embedding-Tokens: got %q, want \"0\" for fallback vectors", got)
	}
	res := decode[ClassificationResponse](t, rr)
	if res.ProductID != prod.ID {
		t.Errorf("product id: got %s", res.ProductID)
	}
	// Bags is excluded, Tools is b2b only, Misc has no profile.
	if len(res.Matches) != 1 {
		t.Fatalf("matches: got %+v, want only Shoes", res.Matches)
	}
	if res.Best.CategoryID != shoes.ID || res.Matches[0] != res.Best {
		t.Errorf("best: got %+v, want %s", res.Best, shoes.ID)
	}
	if res.Best.Score < 0.999 || res.Best.Score > 1 {
		t.Errorf("best score: got %f, want ~1", res.Best.Score)
	}

	rr = do(t, h, http.MethodPost, classifyPath+"?top_k=abc", nil)
	expectError(t, rr, http.StatusBadRequest, ErrorCodeBadRequest)

	rr = do(t, h, http.MethodGet, "/health", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("health after rebuild: got %d (body %s)", rr.Code, rr.Body.String())
	}
	health := decode[HealthResponse](t, rr)
	if !health.Index.Ready || health.Index.Size != 4 {
		t.Errorf("index status: got %+v", health.Index)
	}
	if health.CircuitBreaker != "closed" {
		t.Errorf("breaker: got %q, want closed", health.CircuitBreaker)
	}
}

func TestClassify_NoEligibleCategories(t *testing.T) {
	h := newTestHandler(t)
	cat := createCategory(t, h, CreateCategoryRequest{Name: "Suits", Description: "Formal wear for men"})
	male := []string{"male"}
	putProfile(t, h, cat.ID, ProfileRequest{Genders: &male})
	prod := createProduct(t, h, CreateProductRequest{Title: "Evening dress", Gender: "female"})

	rr := do(t, h, http.MethodPost, "/index/rebuild", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("rebuild: got %d", rr.Code)
	}

	rr = do(t, h, http.MethodPost, "/products/"+prod.ID+"/classify", nil)
	expectError(t, rr, http.StatusUnprocessableEntity, ErrorCodeNoEligibleCategories)

	rr = do(t, h, http.MethodPost, "/products/7f1c2a8e-3a0b-4d6e-9c1f-2b3d4e5f6a7b/classify", nil)
	expectError(t, rr, http.StatusNotFound, ErrorCodeProductNotFound)
}

func TestSearchCategories(t *testing.T) {
	h := newTestHandler(t)
	shoes := createCategory(t, h, CreateCategoryRequest{
		Name:        "Shoes",
		Description: "Footwear for walking",
		Keywords:    []string{"sneakers"},
	})
	createCategory(t, h, CreateCategoryRequest{Name: "Bags", Description: "Handbags and backpacks"})

	rr := do(t, h, http.MethodPost, "/index/rebuild", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("rebuild: got %d", rr.Code)
	}

	q := domain.EmbeddingText("Shoes", "Footwear for walking", []string{"sneakers"})
	rr = do(t, h, http.MethodGet, "/search/categories?limit=1&q="+url.QueryEscape(q), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("search: got %d (body %s)", rr.Code, rr.Body.String())
	}
	resp := decode[SearchResponse](t, rr)
	if len(resp.Items) != 1 || resp.Items[0].Category.ID != shoes.ID {
		t.Fatalf("search: got %+v, want Shoes only", resp.Items)
	}

	rr = do(t, h, http.MethodGet, "/search/categories", nil)
	expectError(t, rr, http.StatusBadRequest, ErrorCodeBadRequest)

	rr = do(t, h, http.MethodGet, "/search/categories?q=+++", nil)
	expectError(t, rr, http.StatusBadRequest, ErrorCodeValidationFailed)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestHandler(t)

	rr := do(t, h, http.MethodGet, "/metrics", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics: got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "go_goroutines") {
		t.Error("metrics body has no runtime collectors")
	}
}
