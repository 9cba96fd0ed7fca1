package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// FieldValue represents a field with both raw data and formatted display
type FieldValue struct {
	Raw     interface{} `json:"raw"`     // For CSV/sorting: 10.4505835722
	Display string      `json:"display"` // For UI: "$10.45"
	Type    string      `json:"type"`    // For CSS: "currency"
}

// FormattedResult is a single result with formatted fields
type FormattedResult map[string]FieldValue

type FieldMetadata struct {
	DisplayName string `json:"display_name"`
	Type        string `json:"type"`
	Alignment   string `json:"alignment"`
}

type ResponseMetadata struct {
	RequestID      string  `json:"request_id"`
	Model          string  `json:"model"`
	OptionType     string  `json:"option_type"`
	Timestamp      string  `json:"timestamp"`
	ProcessingTime float64 `json:"processing_time_ms"`
	ExecutionMode  string  `json:"execution_mode,omitempty"`
	ErrorMode      string  `json:"error_mode,omitempty"`
	ResultCount    int     `json:"result_count"`
	FaultCount     int     `json:"fault_count"`
}

// Param is a batch input: a JSON number or a JSON array of numbers.
type Param struct {
	Values []float64
	Scalar bool
	set    bool
}

// IsSet reports whether the field was present in the request.
func (p Param) IsSet() bool { return p.set }

// ScalarParam is a set scalar Param.
func ScalarParam(v float64) Param { return Param{Values: []float64{v}, Scalar: true, set: true} }

// ArrayParam is a set array Param.
func ArrayParam(vs []float64) Param {
	if vs == nil {
		vs = []float64{}
	}
	return Param{Values: vs, set: true}
}

func (p *Param) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*p = Param{}
		return nil
	}
	if len(data) > 0 && data[0] == '[' {
		var vs []float64
		if err := json.Unmarshal(data, &vs); err != nil {
			return fmt.Errorf("expected an array of numbers: %w", err)
		}
		*p = ArrayParam(vs)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("expected a number or an array of numbers: %w", err)
	}
	*p = ScalarParam(v)
	return nil
}

func (p Param) MarshalJSON() ([]byte, error) {
	switch {
	case !p.set:
		return []byte("null"), nil
	case p.Scalar:
		return json.Marshal(p.Values[0])
	}
	return json.Marshal(p.Values)
}

// PricingRequest is a single-contract request for /api/price, /api/greeks
// and /api/iv. Expiration (YYYY-MM-DD) may replace Time.
type PricingRequest struct {
	Model      string  `json:"model"`       // black_scholes, black76, merton, american
	OptionType string  `json:"option_type"` // "call" or "put"
	Spot       float64 `json:"spot"`        // forward price for black76
	Strike     float64 `json:"strike"`
	Time       float64 `json:"time"`
	Expiration string  `json:"expiration"`
	Rate       *float64 `json:"rate"` // nil uses the configured rate source
	Dividend   float64  `json:"dividend"`
	Volatility float64  `json:"volatility"`
	Price      float64  `json:"price"` // target price for /api/iv
}

// BatchRequest is the broadcast counterpart of PricingRequest.
type BatchRequest struct {
	Model         string `json:"model"`
	OptionType    string `json:"option_type"`
	Spot          Param  `json:"spot"`
	Strike        Param  `json:"strike"`
	Time          Param  `json:"time"`
	Expiration    string `json:"expiration"`
	Rate          Param  `json:"rate"`
	Dividend      Param  `json:"dividend"`
	Volatility    Param  `json:"volatility"`
	Price         Param  `json:"price"`
	CollectErrors *bool  `json:"collect_errors"` // nil keeps the engine's error mode
}

// GreeksResult is the JSON form of a Greek set.
type GreeksResult struct {
	Delta       float64 `json:"delta"`
	Gamma       float64 `json:"gamma"`
	Vega        float64 `json:"vega"`
	Theta       float64 `json:"theta"`
	Rho         float64 `json:"rho"`
	DividendRho float64 `json:"dividend_rho"`
}

// PricingResponse answers a single-contract request.
type PricingResponse struct {
	Success           bool             `json:"success"`
	Price             *float64         `json:"price,omitempty"`
	Greeks            *GreeksResult    `json:"greeks,omitempty"`
	ImpliedVolatility *float64         `json:"implied_volatility,omitempty"`
	Iterations        int              `json:"iterations,omitempty"`
	SolverPhase       string           `json:"solver_phase,omitempty"`
	Formatted         FormattedResult  `json:"formatted"`
	Meta              ResponseMetadata `json:"meta"`
}

// BatchGreeks holds per-Greek result columns. Failed elements are null.
type BatchGreeks struct {
	Delta       []*float64 `json:"delta"`
	Gamma       []*float64 `json:"gamma"`
	Vega        []*float64 `json:"vega"`
	Theta       []*float64 `json:"theta"`
	Rho         []*float64 `json:"rho"`
	DividendRho []*float64 `json:"dividend_rho"`
}

// FaultResult describes one failed batch element.
type FaultResult struct {
	Index int    `json:"index"`
	Class string `json:"class"`
	Error string `json:"error"`
}

// BatchResponse answers a batch request. Failed elements are null.
type BatchResponse struct {
	Success      bool             `json:"success"`
	Prices       []*float64       `json:"prices,omitempty"`
	Greeks       *BatchGreeks     `json:"greeks,omitempty"`
	Volatilities []*float64       `json:"volatilities,omitempty"`
	Faults       []FaultResult    `json:"faults,omitempty"`
	Meta         ResponseMetadata `json:"meta"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Class     string `json:"class"`
	Field     string `json:"field,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// Nullable converts NaN and ±Inf to nil so the column can be JSON-encoded.
func Nullable(vs []float64) []*float64 {
	if vs == nil {
		return nil
	}
	out := make([]*float64, len(vs))
	for i := range vs {
		if finite(vs[i]) {
			out[i] = &vs[i]
		}
	}
	return out
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// Formatter methods for dual format response

func Currency(value float64) FieldValue {
	if !finite(value) {
		return notAvailable("currency")
	}
	return FieldValue{
		Raw:     value,
		Display: "$" + decimal.NewFromFloat(value).StringFixed(2),
		Type:    "currency",
	}
}

func Percentage(value float64) FieldValue {
	if !finite(value) {
		return notAvailable("percentage")
	}
	return FieldValue{
		Raw:     value,
		Display: decimal.NewFromFloat(value).Shift(2).StringFixed(2) + "%",
		Type:    "percentage",
	}
}

func Number(value float64, places int32) FieldValue {
	if !finite(value) {
		return notAvailable("number")
	}
	return FieldValue{
		Raw:     value,
		Display: decimal.NewFromFloat(value).StringFixed(places),
		Type:    "number",
	}
}

func Integer(value int) FieldValue {
	return FieldValue{
		Raw:     value,
		Display: fmt.Sprintf("%d", value),
		Type:    "integer",
	}
}

func Text(value string) FieldValue {
	return FieldValue{
		Raw:     value,
		Display: value,
		Type:    "text",
	}
}

func notAvailable(typ string) FieldValue {
	return FieldValue{Raw: nil, Display: "n/a", Type: typ}
}

// FieldMetadataTable describes every formatted field the service returns.
func FieldMetadataTable() map[string]FieldMetadata {
	return map[string]FieldMetadata{
		"price":              {DisplayName: "Price", Type: "currency", Alignment: "right"},
		"delta":              {DisplayName: "Delta", Type: "number", Alignment: "right"},
		"gamma":              {DisplayName: "Gamma", Type: "number", Alignment: "right"},
		"vega":               {DisplayName: "Vega", Type: "number", Alignment: "right"},
		"theta":              {DisplayName: "Theta", Type: "number", Alignment: "right"},
		"rho":                {DisplayName: "Rho", Type: "number", Alignment: "right"},
		"dividend_rho":       {DisplayName: "Dividend Rho", Type: "number", Alignment: "right"},
		"implied_volatility": {DisplayName: "IV", Type: "percentage", Alignment: "right"},
		"iterations":         {DisplayName: "Iterations", Type: "integer", Alignment: "center"},
		"model":              {DisplayName: "Model", Type: "text", Alignment: "left"},
	}
}
