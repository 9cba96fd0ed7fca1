package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/jwaldner/optionkit/internal/config"
	"github.com/jwaldner/optionkit/internal/faults"
	"github.com/jwaldner/optionkit/internal/logger"
	"github.com/jwaldner/optionkit/internal/models"
	"github.com/jwaldner/optionkit/internal/rates"
	"github.com/jwaldner/optionkit/internal/utils"
	optionkit "github.com/jwaldner/optionkit/optionkit_lib"
)

// maxBodyBytes bounds request bodies; batch arrays of a million numbers fit.
const maxBodyBytes = 64 << 20

// PricingHandler serves the pricing, Greeks and implied volatility endpoints.
type PricingHandler struct {
	engine *optionkit.Engine
	cfg    *config.Config
	rates  rates.Source
	now    func() time.Time
}

// NewPricingHandler creates a handler backed by engine. Requests without a
// rate take it from src; a nil src uses the configured default rate.
func NewPricingHandler(engine *optionkit.Engine, cfg *config.Config, src rates.Source) *PricingHandler {
	if src == nil {
		src = rates.Fixed(cfg.Rates.DefaultRate)
	}
	return &PricingHandler{engine: engine, cfg: cfg, rates: src, now: time.Now}
}

// NewRouter registers every endpoint and the middleware chain.
func NewRouter(h *PricingHandler) *mux.Router {
	r := mux.NewRouter()
	r.Use(RequestIDMiddleware, CORSMiddleware)
	if h.cfg.Logging.LogRequests {
		r.Use(LoggingMiddleware)
	}

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/price", h.PriceHandler).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/greeks", h.GreeksHandler).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/iv", h.ImpliedVolHandler).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/batch/price", h.BatchPriceHandler).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/batch/greeks", h.BatchGreeksHandler).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/batch/iv", h.BatchImpliedVolHandler).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/engine", h.EngineHandler).Methods(http.MethodGet)

	r.HandleFunc("/health", h.HealthHandler).Methods(http.MethodGet)
	return r
}

// contract is a decoded and resolved request head.
type contract struct {
	kind optionkit.Kind
	typ  optionkit.OptionType
}

func (h *PricingHandler) resolve(model, optionType string) (contract, error) {
	if model == "" {
		model = h.cfg.DefaultModel
	}
	if optionType == "" {
		optionType = h.cfg.DefaultOptionType
	}
	kind, err := optionkit.ParseKind(model)
	if err != nil {
		return contract{}, err
	}
	typ, err := optionkit.ParseOptionType(optionType)
	if err != nil {
		return contract{}, err
	}
	return contract{kind: kind, typ: typ}, nil
}

// years returns time, or the years to expiration when one is given.
func (h *PricingHandler) years(t float64, expiration string) (float64, error) {
	if expiration == "" {
		return t, nil
	}
	y, err := utils.YearsToExpiration(expiration, h.now())
	if err != nil {
		return 0, &faults.ValidationError{Field: "expiration", Reason: err.Error()}
	}
	return y, nil
}

func (h *PricingHandler) decodeSingle(w http.ResponseWriter, r *http.Request) (contract, optionkit.Params, models.PricingRequest, bool) {
	var req models.PricingRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return contract{}, optionkit.Params{}, req, false
	}
	c, err := h.resolve(req.Model, req.OptionType)
	if err != nil {
		writeError(w, r, err)
		return contract{}, optionkit.Params{}, req, false
	}
	t, err := h.years(req.Time, req.Expiration)
	if err != nil {
		writeError(w, r, err)
		return contract{}, optionkit.Params{}, req, false
	}
	var rate float64
	if req.Rate != nil {
		rate = *req.Rate
	} else {
		rate = h.rates.RiskFreeRate(r.Context())
	}
	p := optionkit.Params{
		Spot:       req.Spot,
		Strike:     req.Strike,
		Time:       t,
		Rate:       rate,
		Dividend:   req.Dividend,
		Volatility: req.Volatility,
	}
	return c, p, req, true
}

func (h *PricingHandler) meta(r *http.Request, c contract, start time.Time, n int) models.ResponseMetadata {
	return models.ResponseMetadata{
		RequestID:      RequestID(r.Context()),
		Model:          c.kind.String(),
		OptionType:     c.typ.String(),
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		ProcessingTime: time.Since(start).Seconds() * 1000,
		ResultCount:    n,
	}
}

// PriceHandler prices one contract.
func (h *PricingHandler) PriceHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	c, p, _, ok := h.decodeSingle(w, r)
	if !ok {
		return
	}
	price, err := h.engine.Price(c.kind, c.typ, p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.PricingResponse{
		Success: true,
		Price:   &price,
		Formatted: models.FormattedResult{
			"model": models.Text(c.kind.String()),
			"price": models.Currency(price),
		},
		Meta: h.meta(r, c, start, 1),
	})
}

// GreeksHandler returns the price and every Greek of one contract.
func (h *PricingHandler) GreeksHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	c, p, _, ok := h.decodeSingle(w, r)
	if !ok {
		return
	}
	price, err := h.engine.Price(c.kind, c.typ, p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	g, err := h.engine.Greeks(c.kind, c.typ, p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.PricingResponse{
		Success: true,
		Price:   &price,
		Greeks:  greeksResult(g),
		Formatted: models.FormattedResult{
			"model":        models.Text(c.kind.String()),
			"price":        models.Currency(price),
			"delta":        models.Number(g.Delta, 4),
			"gamma":        models.Number(g.Gamma, 4),
			"vega":         models.Number(g.Vega, 4),
			"theta":        models.Number(g.Theta, 4),
			"rho":          models.Number(g.Rho, 4),
			"dividend_rho": models.Number(g.DividendRho, 4),
		},
		Meta: h.meta(r, c, start, 1),
	})
}

// ImpliedVolHandler solves one contract for volatility.
func (h *PricingHandler) ImpliedVolHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	c, p, req, ok := h.decodeSingle(w, r)
	if !ok {
		return
	}
	res, err := h.engine.SolveImpliedVolatility(c.kind, c.typ, p, req.Price)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.PricingResponse{
		Success:           true,
		ImpliedVolatility: &res.Volatility,
		Iterations:        res.Iterations,
		SolverPhase:       res.Phase.String(),
		Formatted: models.FormattedResult{
			"model":              models.Text(c.kind.String()),
			"implied_volatility": models.Percentage(res.Volatility),
			"iterations":         models.Integer(res.Iterations),
		},
		Meta: h.meta(r, c, start, 1),
	})
}

// batch is a decoded batch request.
type batch struct {
	contract
	engine *optionkit.Engine
	in     optionkit.Inputs
	price  optionkit.Stream
}

func stream(p models.Param) optionkit.Stream {
	switch {
	case !p.IsSet():
		return optionkit.Stream{}
	case p.Scalar:
		return optionkit.Scalar(p.Values[0])
	}
	return optionkit.Array(p.Values)
}

func (h *PricingHandler) decodeBatch(w http.ResponseWriter, r *http.Request, iv bool) (batch, bool) {
	var req models.BatchRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return batch{}, false
	}
	c, err := h.resolve(req.Model, req.OptionType)
	if err != nil {
		writeError(w, r, err)
		return batch{}, false
	}

	b := batch{
		contract: c,
		engine:   h.engine,
		in: optionkit.Inputs{
			Spot:       stream(req.Spot),
			Strike:     stream(req.Strike),
			Time:       stream(req.Time),
			Rate:       stream(req.Rate),
			Dividend:   stream(req.Dividend),
			Volatility: stream(req.Volatility),
		},
		price: stream(req.Price),
	}
	if req.Expiration != "" {
		t, err := h.years(0, req.Expiration)
		if err != nil {
			writeError(w, r, err)
			return batch{}, false
		}
		b.in.Time = optionkit.Scalar(t)
	}
	if !b.in.Rate.Defined() {
		b.in.Rate = optionkit.Scalar(h.rates.RiskFreeRate(r.Context()))
	}
	if iv && !b.in.Volatility.Defined() {
		// Not used when solving; keeps the plan complete.
		b.in.Volatility = optionkit.Scalar(0)
	}
	if req.CollectErrors != nil {
		mode := optionkit.FailFast
		if *req.CollectErrors {
			mode = optionkit.CollectErrors
		}
		b.engine = h.engine.InMode(mode)
	}

	var n int
	if iv {
		n, err = optionkit.PlanIV(optionkit.IVInputs{Inputs: b.in, Price: b.price})
	} else {
		n, err = optionkit.Plan(b.in)
	}
	if err != nil {
		writeError(w, r, err)
		return batch{}, false
	}
	if limit := h.cfg.Engine.MaxBatchSize; limit > 0 && n > limit {
		writeJSON(w, http.StatusRequestEntityTooLarge, models.ErrorResponse{
			Error:     fmt.Sprintf("batch of %d elements exceeds the limit of %d", n, limit),
			Class:     "validation",
			RequestID: RequestID(r.Context()),
		})
		return batch{}, false
	}
	return b, true
}

func (h *PricingHandler) batchMeta(r *http.Request, b batch, start time.Time, report *optionkit.Report) models.ResponseMetadata {
	m := h.meta(r, b.contract, start, report.Len)
	m.ExecutionMode = report.Strategy.String()
	m.ErrorMode = b.engine.ErrorMode().String()
	m.FaultCount = len(report.Faults)
	return m
}

func faultResults(fs []optionkit.Fault) []models.FaultResult {
	if len(fs) == 0 {
		return nil
	}
	out := make([]models.FaultResult, len(fs))
	for i, f := range fs {
		out[i] = models.FaultResult{Index: f.Index, Class: faults.Class(f.Err), Error: f.Err.Error()}
	}
	return out
}

// BatchPriceHandler prices a broadcast batch.
func (h *PricingHandler) BatchPriceHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	b, ok := h.decodeBatch(w, r, false)
	if !ok {
		return
	}
	prices, report, err := b.engine.PriceBatch(b.kind, b.typ, b.in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.BatchResponse{
		Success: report.OK(),
		Prices:  models.Nullable(prices),
		Faults:  faultResults(report.Faults),
		Meta:    h.batchMeta(r, b, start, report),
	})
}

// BatchGreeksHandler computes Greeks for a broadcast batch.
func (h *PricingHandler) BatchGreeksHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	b, ok := h.decodeBatch(w, r, false)
	if !ok {
		return
	}
	buf, report, err := b.engine.GreeksBatch(b.kind, b.typ, b.in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.BatchResponse{
		Success: report.OK(),
		Greeks: &models.BatchGreeks{
			Delta:       models.Nullable(buf.Delta),
			Gamma:       models.Nullable(buf.Gamma),
			Vega:        models.Nullable(buf.Vega),
			Theta:       models.Nullable(buf.Theta),
			Rho:         models.Nullable(buf.Rho),
			DividendRho: models.Nullable(buf.DividendRho),
		},
		Faults: faultResults(report.Faults),
		Meta:   h.batchMeta(r, b, start, report),
	})
}

// BatchImpliedVolHandler solves a broadcast batch for volatility.
func (h *PricingHandler) BatchImpliedVolHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	b, ok := h.decodeBatch(w, r, true)
	if !ok {
		return
	}
	vols, report, err := b.engine.ImpliedVolBatch(b.kind, b.typ, optionkit.IVInputs{Inputs: b.in, Price: b.price})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.BatchResponse{
		Success:      report.OK(),
		Volatilities: models.Nullable(vols),
		Faults:       faultResults(report.Faults),
		Meta:         h.batchMeta(r, b, start, report),
	})
}

// EngineHandler describes the engine configuration.
func (h *PricingHandler) EngineHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"engine":         h.engine.Info(),
		"field_metadata": models.FieldMetadataTable(),
		"expiration":     utils.NextMonthlyExpiration(h.now()),
	})
}

// HealthHandler reports liveness.
func (h *PricingHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}

func greeksResult(g optionkit.Greeks) *models.GreeksResult {
	return &models.GreeksResult{
		Delta:       g.Delta,
		Gamma:       g.Gamma,
		Vega:        g.Vega,
		Theta:       g.Theta,
		Rho:         g.Rho,
		DividendRho: g.DividendRho,
	}
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &faults.ValidationError{Reason: "invalid request body: " + err.Error()}
	}
	return nil
}

// statusFor maps an error class to an HTTP status.
func statusFor(err error) int {
	switch faults.Class(err) {
	case "validation":
		return http.StatusBadRequest
	case "bounds", "convergence":
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	resp := models.ErrorResponse{
		Error:     err.Error(),
		Class:     faults.Class(err),
		RequestID: RequestID(r.Context()),
	}
	var ve *faults.ValidationError
	if errors.As(err, &ve) {
		resp.Field = ve.Field
	}
	if status >= http.StatusInternalServerError {
		logger.Error.Printf("❌ %s %s: %v [%s]", r.Method, r.URL.Path, err, resp.RequestID)
	} else {
		logger.Debug.Printf("⚠️ %s %s: %v [%s]", r.Method, r.URL.Path, err, resp.RequestID)
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error.Printf("❌ JSON encoding failed: %v", err)
	}
}
