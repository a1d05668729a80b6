package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"approvalScope/internal/pipeline"
)

type querier interface {
	Query(ctx context.Context, req pipeline.Request) pipeline.Response
	PricesEnabled() bool
}

// ApprovalsHandler answers GET /approvals.
//
// Query parameters: address (repeatable or comma-separated, required),
// contract (same form, optional), view=raw|exposure, usd=true|false.
// Per-address and per-contract failures come back in the failures list next
// to the partial results. usd=true is rejected when no price service is wired.
func ApprovalsHandler(svc querier, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()

		addresses := splitParams(query["address"])
		if len(addresses) == 0 {
			http.Error(w, "address is required", http.StatusBadRequest)
			return
		}

		view, err := pipeline.ParseView(query.Get("view"))
		if err != nil {
			http.Error(w, "invalid view", http.StatusBadRequest)
			return
		}

		usd := false
		if usdParam := query.Get("usd"); usdParam != "" {
			usd, err = strconv.ParseBool(usdParam)
			if err != nil {
				http.Error(w, "invalid usd", http.StatusBadRequest)
				return
			}
		}
		if usd && !svc.PricesEnabled() {
			http.Error(w, "usd prices are disabled", http.StatusBadRequest)
			return
		}

		resp := svc.Query(r.Context(), pipeline.Request{
			Addresses: addresses,
			Contracts: splitParams(query["contract"]),
			View:      view,
			USD:       usd,
		})

		logger.Info("approvals query",
			zap.Int("addresses", len(addresses)),
			zap.String("view", string(view)),
			zap.Bool("usd", usd),
			zap.Int("results", len(resp.Results)),
			zap.Int("failures", len(resp.Failures)),
		)

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			logger.Error("encode response", zap.Error(err))
		}
	}
}

func splitParams(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
