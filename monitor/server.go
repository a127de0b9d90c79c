// Package monitor serves the sale engine's read-only projections and the
// recent observation tail over HTTP, for operators and external monitors.
// Nothing here mutates the sale.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/holiman/uint256"

	"github.com/cloudx-io/opensale/sale"
	"github.com/cloudx-io/opensale/saleapi"
)

// Server exposes one sale over HTTP.
type Server struct {
	sale *sale.Sale
	feed *saleapi.Ring
	srv  *http.Server
}

// New builds a monitor server for the given sale. feed may be nil, in which
// case the observations endpoint serves an empty tail.
func New(listenAddr string, s *sale.Sale, feed *saleapi.Ring) *Server {
	m := &Server{sale: s, feed: feed}
	m.srv = &http.Server{
		Addr:         listenAddr,
		Handler:      m.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return m
}

// Router returns the chi router serving the monitor API.
func (m *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/v1/status", m.handleStatus)
	r.Get("/v1/price", m.handlePrice)
	r.Get("/v1/deal", m.handleDeal)
	r.Get("/v1/participant/{address}", m.handleParticipant)
	r.Get("/v1/observations", m.handleObservations)
	return r
}

// ListenAndServe blocks serving the API until the server is shut down.
func (m *Server) ListenAndServe() error {
	log.Printf("INFO: monitor listening on %s", m.srv.Addr)
	err := m.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (m *Server) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}

// statusResponse is the JSON shape of /v1/status. Amounts appear twice: exact
// wei strings for machines and ether-denominated strings for operators.
type statusResponse struct {
	Active              bool      `json:"active"`
	Halted              bool      `json:"halted"`
	Begin               time.Time `json:"begin"`
	End                 time.Time `json:"end"`
	EndPrice            string    `json:"end_price"`
	Era                 uint64    `json:"era"`
	TotalReceived       string    `json:"total_received"`
	TotalReceivedEther  string    `json:"total_received_ether"`
	TotalAccounted      string    `json:"total_accounted"`
	TotalAccountedEther string    `json:"total_accounted_ether"`
	TotalFinalised      string    `json:"total_finalised"`
	TotalFinalisedEther string    `json:"total_finalised_ether"`
	Participants        int       `json:"participants"`
	Retired             bool      `json:"retired"`
}

func (m *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := m.sale.Status()
	writeJSON(w, http.StatusOK, statusResponse{
		Active:              st.Active,
		Halted:              st.Halted,
		Begin:               st.Begin,
		End:                 st.End,
		EndPrice:            saleapi.Wei(st.EndPrice),
		Era:                 st.Era,
		TotalReceived:       saleapi.Wei(st.TotalReceived),
		TotalReceivedEther:  saleapi.Ether(st.TotalReceived),
		TotalAccounted:      saleapi.Wei(st.TotalAccounted),
		TotalAccountedEther: saleapi.Ether(st.TotalAccounted),
		TotalFinalised:      saleapi.Wei(st.TotalFinalised),
		TotalFinalisedEther: saleapi.Ether(st.TotalFinalised),
		Participants:        st.Participants,
		Retired:             m.sale.Retired(),
	})
}

// priceResponse is the JSON shape of /v1/price.
type priceResponse struct {
	Price            string `json:"price"`
	PriceEther       string `json:"price_ether"`
	TokensAvailable  string `json:"tokens_available"`
	MaxPurchase      string `json:"max_purchase"`
	MaxPurchaseEther string `json:"max_purchase_ether"`
}

func (m *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	price := m.sale.CurrentPrice()
	maxPurchase := m.sale.MaxPurchase()
	writeJSON(w, http.StatusOK, priceResponse{
		Price:            saleapi.Wei(price),
		PriceEther:       saleapi.Ether(price),
		TokensAvailable:  saleapi.Wei(m.sale.TokensAvailable()),
		MaxPurchase:      saleapi.Wei(maxPurchase),
		MaxPurchaseEther: saleapi.Ether(maxPurchase),
	})
}

// dealResponse is the JSON shape of /v1/deal.
type dealResponse struct {
	Accepted      string `json:"accepted"`
	AcceptedEther string `json:"accepted_ether"`
	Refund        string `json:"refund"`
	RefundEther   string `json:"refund_ether"`
	Price         string `json:"price"`
	Bonus         string `json:"bonus"`
}

// handleDeal previews admission of ?value=<wei> without admitting it.
func (m *Server) handleDeal(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("value")
	value, err := uint256.FromDecimal(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "value must be a decimal wei amount")
		return
	}
	deal := m.sale.TheDeal(value)
	writeJSON(w, http.StatusOK, dealResponse{
		Accepted:      saleapi.Wei(deal.Accepted),
		AcceptedEther: saleapi.Ether(deal.Accepted),
		Refund:        saleapi.Wei(deal.Refund),
		RefundEther:   saleapi.Ether(deal.Refund),
		Price:         saleapi.Wei(deal.Price),
		Bonus:         saleapi.Wei(deal.Bonus),
	})
}

// participantResponse is the JSON shape of /v1/participant/{address}.
type participantResponse struct {
	Who   string `json:"who"`
	Value string `json:"value"`
	Bonus string `json:"bonus"`
}

func (m *Server) handleParticipant(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "address")
	if !common.IsHexAddress(raw) {
		writeError(w, http.StatusBadRequest, "invalid address")
		return
	}
	who := common.HexToAddress(raw)
	acct, ok := m.sale.Participant(who)
	if !ok {
		writeError(w, http.StatusNotFound, "no recorded contribution")
		return
	}
	writeJSON(w, http.StatusOK, participantResponse{
		Who:   who.Hex(),
		Value: saleapi.Wei(acct.Value),
		Bonus: saleapi.Wei(acct.Bonus),
	})
}

func (m *Server) handleObservations(w http.ResponseWriter, r *http.Request) {
	var tail []saleapi.Observation
	if m.feed != nil {
		tail = m.feed.Tail()
	}
	if tail == nil {
		tail = []saleapi.Observation{}
	}
	writeJSON(w, http.StatusOK, tail)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ERROR: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
