package api

import (
	"net/http"
	"strconv"

	"github.com/jbweber/homelab/preinstall/internal/ipcalc"
	"github.com/jbweber/homelab/preinstall/internal/partition"
)

// ConvertResponse is the result of a unit conversion
type ConvertResponse struct {
	Value  uint64         `json:"value"`
	From   partition.Unit `json:"from"`
	To     partition.Unit `json:"to"`
	Result uint64         `json:"result"`
}

// gatewayHandler handles GET /api/v0/calc/gateway?address=&mask=. An input
// that cannot be resolved is still a 200 with resolved=false.
func (a *API) gatewayHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("address") == "" || q.Get("mask") == "" {
		writeError(w, a.logger, http.StatusBadRequest, "address and mask are required")
		return
	}
	writeJSON(w, a.logger, http.StatusOK, ipcalc.DeriveGatewayAndMask(q.Get("address"), q.Get("mask")))
}

// convertHandler handles GET /api/v0/calc/convert?value=&from=&to=
func (a *API) convertHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	value, err := strconv.ParseUint(q.Get("value"), 10, 64)
	if err != nil {
		writeError(w, a.logger, http.StatusBadRequest, "Invalid value")
		return
	}
	from, err := partition.ParseUnit(q.Get("from"))
	if err != nil {
		writeError(w, a.logger, http.StatusBadRequest, err.Error())
		return
	}
	to, err := partition.ParseUnit(q.Get("to"))
	if err != nil {
		writeError(w, a.logger, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, a.logger, http.StatusOK, ConvertResponse{
		Value:  value,
		From:   from,
		To:     to,
		Result: partition.Convert(value, from, to),
	})
}
