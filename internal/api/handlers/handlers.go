package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noahpengding/peng-finance/internal/api/middleware"
	"github.com/noahpengding/peng-finance/internal/auth"
	"github.com/noahpengding/peng-finance/internal/category"
	"github.com/noahpengding/peng-finance/internal/dedup"
	"github.com/noahpengding/peng-finance/internal/domain"
	"github.com/noahpengding/peng-finance/internal/jobs"
	"github.com/noahpengding/peng-finance/internal/mapping"
	"github.com/noahpengding/peng-finance/internal/pipeline"
	"github.com/noahpengding/peng-finance/internal/query"
	"github.com/noahpengding/peng-finance/internal/store"
)

// maxUploadBytes bounds a statement upload; bank CSV exports are small.
const maxUploadBytes = 32 << 20

// ImportsHandler handles statement import endpoints.
type ImportsHandler struct {
	importer *pipeline.Importer
	log      zerolog.Logger
}

// NewImportsHandler creates a new imports handler.
func NewImportsHandler(importer *pipeline.Importer, log zerolog.Logger) *ImportsHandler {
	return &ImportsHandler{importer: importer, log: log}
}

// Import handles POST /api/imports. The statement arrives as a multipart
// form: "file" carries the CSV, "account" names the saved mapping to use.
func (h *ImportsHandler) Import(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	username := middleware.Username(ctx)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	account := r.FormValue("account")
	if account == "" {
		middleware.WriteError(w, http.StatusBadRequest, "account is required")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to read upload")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to read upload")
		return
	}

	inserted, err := h.importer.Import(ctx, pipeline.ImportRequest{
		Username: username,
		Account:  account,
		Filename: header.Filename,
		Data:     data,
	})
	if err != nil {
		var missing *mapping.FieldResolutionError
		switch {
		case errors.Is(err, pipeline.ErrParse):
			middleware.WriteError(w, http.StatusBadRequest, "Upload is not parseable tabular data")
		case errors.As(err, &missing):
			middleware.WriteError(w, http.StatusBadRequest, missing.Error())
		default:
			h.log.Error().Err(err).Str("account", account).Msg("Import failed")
			middleware.WriteError(w, http.StatusInternalServerError, "Import failed")
		}
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"account":  account,
		"inserted": inserted,
	})
}

// MappingsHandler handles field-mapping endpoints.
type MappingsHandler struct {
	mappings  *mapping.Service
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewMappingsHandler creates a new mappings handler.
func NewMappingsHandler(mappings *mapping.Service, publisher jobs.Publisher, log zerolog.Logger) *MappingsHandler {
	return &MappingsHandler{mappings: mappings, publisher: publisher, log: log}
}

// GetMappings handles GET /api/mappings?account=NAME
func (h *MappingsHandler) GetMappings(w http.ResponseWriter, r *http.Request) {
	account := r.URL.Query().Get("account")
	if account == "" {
		middleware.WriteError(w, http.StatusBadRequest, "account is required")
		return
	}

	mappings, err := h.mappings.Get(r.Context(), account)
	if err != nil {
		h.log.Error().Err(err).Str("account", account).Msg("Failed to load mappings")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load mappings")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"account":  account,
		"mappings": mappings,
	})
}

// SaveMappings handles PUT /api/mappings
func (h *MappingsHandler) SaveMappings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Account  string            `json:"account"`
		Mappings map[string]string `json:"mappings"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Account == "" {
		middleware.WriteError(w, http.StatusBadRequest, "account is required")
		return
	}

	mappings := make(map[domain.CanonicalField]string, len(req.Mappings))
	for field, source := range req.Mappings {
		mappings[domain.CanonicalField(field)] = source
	}

	ctx := r.Context()
	if err := h.mappings.Save(ctx, req.Account, mappings); err != nil {
		h.log.Error().Err(err).Str("account", req.Account).Msg("Failed to save mappings")
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.publisher.PublishSync(ctx, &jobs.SyncJob{
		Reason:   "save_mapping",
		Username: middleware.Username(ctx),
	}); err != nil {
		h.log.Warn().Err(err).Msg("Could not enqueue snapshot sync")
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"account": req.Account,
		"saved":   len(mappings),
	})
}

// ListAccounts handles GET /api/accounts
func (h *MappingsHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.mappings.ListAccounts(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list accounts")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list accounts")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"accounts": accounts,
		"count":    len(accounts),
	})
}

// TransactionsHandler handles transaction views and deduplication.
type TransactionsHandler struct {
	transactions store.TransactionStore
	dedupe       *dedup.Service
	log          zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(transactions store.TransactionStore, dedupe *dedup.Service, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{transactions: transactions, dedupe: dedupe, log: log}
}

// ListTransactions handles GET /api/transactions. Comma-separated query
// parameters narrow each filter dimension; an absent parameter selects the
// full observed universe for that dimension.
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	username := middleware.Username(ctx)

	txs, err := h.transactions.ListForUser(ctx, username)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list transactions")
		return
	}

	opts := query.FilterOptions(txs)
	q := r.URL.Query()
	filtered := query.Filter(txs,
		splitOrAll(q.Get("accounts"), opts.Accounts),
		splitOrAll(q.Get("post_dates"), opts.PostDates),
		splitOrAll(q.Get("categories"), opts.Categories),
		splitOrAll(q.Get("merchants"), opts.Merchants),
	)
	totals := query.Aggregate(filtered)

	if filtered == nil {
		filtered = []*domain.Transaction{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": filtered,
		"count":        totals.Count,
		"sum":          totals.Sum,
		"options":      opts,
	})
}

// Deduplicate handles POST /api/transactions/dedupe
func (h *TransactionsHandler) Deduplicate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	username := middleware.Username(ctx)

	removed, err := h.dedupe.Deduplicate(ctx, username)
	if err != nil {
		h.log.Error().Err(err).Msg("Deduplication failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Deduplication failed")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"removed": removed,
	})
}

// CategoriesHandler handles category and rule endpoints.
type CategoriesHandler struct {
	categories *category.Service
	log        zerolog.Logger
}

// NewCategoriesHandler creates a new categories handler.
func NewCategoriesHandler(categories *category.Service, log zerolog.Logger) *CategoriesHandler {
	return &CategoriesHandler{categories: categories, log: log}
}

// ListCategories handles GET /api/categories
func (h *CategoriesHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categories.ListCategories(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list categories")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list categories")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"categories": categories,
		"count":      len(categories),
	})
}

// AssignCategory handles POST /api/categories/assign
func (h *CategoriesHandler) AssignCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OriginalCategory string `json:"original_category"`
		MerchantName     string `json:"merchant_name"`
		Description      string `json:"description"`
		TargetCategory   string `json:"target_category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.TargetCategory == "" {
		middleware.WriteError(w, http.StatusBadRequest, "target_category is required")
		return
	}

	updated, err := h.categories.Assign(r.Context(),
		req.OriginalCategory, req.MerchantName, req.Description, req.TargetCategory)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to save rule")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to save rule")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"target_category": req.TargetCategory,
		"recategorized":   updated,
	})
}

// ListUncategorized handles GET /api/transactions/uncategorized
func (h *CategoriesHandler) ListUncategorized(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	username := middleware.Username(ctx)

	txs, err := h.categories.ListUncategorized(ctx, username)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list uncategorized transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list uncategorized transactions")
		return
	}

	if txs == nil {
		txs = []*domain.Transaction{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": txs,
		"count":        len(txs),
	})
}

// UsersHandler handles account creation and login.
type UsersHandler struct {
	auth *auth.Service
	log  zerolog.Logger
}

// NewUsersHandler creates a new users handler.
func NewUsersHandler(auth *auth.Service, log zerolog.Logger) *UsersHandler {
	return &UsersHandler{auth: auth, log: log}
}

// CreateUser handles POST /api/users
func (h *UsersHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Email    string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		middleware.WriteError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	user, err := h.auth.Register(r.Context(), req.Username, req.Password, req.Email)
	if err != nil {
		h.log.Error().Err(err).Str("username", req.Username).Msg("Failed to create user")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to create user")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, map[string]string{
		"username": user.Username,
	})
}

// Login handles POST /api/login
func (h *UsersHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	token, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			middleware.WriteError(w, http.StatusUnauthorized, "Invalid username or password")
			return
		}
		h.log.Error().Err(err).Msg("Login failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Login failed")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"username": req.Username,
		"token":    token,
	})
}

// JobsHandler handles sync-job inspection endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{store: store, log: log}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := jobs.JobFilter{
		Reason: q.Get("reason"),
		Status: jobs.JobStatus(q.Get("status")),
	}

	if limitStr := q.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}
	if offsetStr := q.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}

func splitOrAll(raw string, universe []string) []string {
	if raw == "" {
		return universe
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}
