package vouchers

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/keystone-erp/keystone-erp/internal/gl"
	"github.com/keystone-erp/keystone-erp/internal/lifecycle"
	"github.com/keystone-erp/keystone-erp/internal/stock"
)

func TestRespondErrorStatusMapping(t *testing.T) {
	h := NewHandler(slog.Default(), nil)

	cases := []struct {
		err  error
		want int
	}{
		{lifecycle.ErrInvalidTransition, http.StatusConflict},
		{ErrDocumentNotFound, http.StatusNotFound},
		{gl.ErrUnbalancedEntry, http.StatusUnprocessableEntity},
		{stock.ErrInvalidQuantity, http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: ITEM-A at Main would reach -3.0000", stock.ErrNegativeStock), http.StatusUnprocessableEntity},
		{gl.ErrAccountNotFound, http.StatusNotFound},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		h.respondError(rr, tc.err)
		require.Equal(t, tc.want, rr.Code, "error %v", tc.err)
	}
}
