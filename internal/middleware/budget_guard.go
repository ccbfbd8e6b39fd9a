package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
)

// AllowedTokens is the set of payment tokens the platform escrows.
// BudgetGuard rejects task creation with unknown tokens early.
var AllowedTokens = map[string]bool{
	"USDT":   true,
	"BTC":    true,
	"ETH":    true,
	"GOLLAR": true,
}

// budgetPattern accepts a plain decimal with up to 6 fractional digits,
// matching the NUMERIC(18,6) budget column.
var budgetPattern = regexp.MustCompile(`^[0-9]{1,12}(\.[0-9]{1,6})?$`)

// peekedTask is the subset of the create-task body the guard inspects.
type peekedTask struct {
	Budget string `json:"budget"`
	Token  string `json:"token"`
}

// ValidBudget reports whether s is a well-formed, non-zero decimal
// budget string. The check is lexical; no float conversion happens.
func ValidBudget(s string) bool {
	if !budgetPattern.MatchString(s) {
		return false
	}
	return strings.Trim(strings.ReplaceAll(s, ".", ""), "0") != ""
}

// BudgetGuard validates budget and token on task creation before the
// handler runs. Reads the body to peek at the fields, then replaces
// r.Body so the handler can re-read it.
func BudgetGuard() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, err := io.ReadAll(r.Body)
			r.Body.Close()
			if err != nil {
				http.Error(w, `{"error":"failed to read body"}`, http.StatusBadRequest)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(bodyBytes))

			var peek peekedTask
			if err := json.Unmarshal(bodyBytes, &peek); err != nil {
				http.Error(w, `{"error":"invalid JSON body"}`, http.StatusBadRequest)
				return
			}
			if !ValidBudget(peek.Budget) {
				http.Error(w, `{"error":"budget must be a positive decimal string"}`, http.StatusBadRequest)
				return
			}
			if !AllowedTokens[peek.Token] {
				http.Error(w, fmt.Sprintf(`{"error":"token %q is not supported"}`, peek.Token), http.StatusBadRequest)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
