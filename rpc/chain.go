package rpc

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"hashledger/cache"
	"hashledger/core"
	"hashledger/logger"
	"hashledger/metrics"

	"github.com/gorilla/mux"
)

// TransactionAck adalah jawaban submit-transaction.
type TransactionAck struct {
	Message string `json:"message"`
	Index   uint64 `json:"index"` // blok yang diperkirakan akan memuat transaksi
}

const ackMessage = "Transaction processed"

// ChainAPI melayani pembacaan chain dan penerimaan transaksi.
type ChainAPI struct {
	ledger    *core.Ledger
	validator *core.Validator
	responses *cache.Cache // nil jika cache dimatikan
}

func NewChainAPI(ledger *core.Ledger, responses *cache.Cache) *ChainAPI {
	return &ChainAPI{
		ledger:    ledger,
		validator: core.NewValidator(),
		responses: responses,
	}
}

// chainCacheKey: blok immutable dan chain hanya bertambah, jadi panjang chain cukup sebagai versi.
func chainCacheKey(length int) string {
	return "chain:" + strconv.Itoa(length)
}

func (api *ChainAPI) ChainHandler(w http.ResponseWriter, r *http.Request) {
	if preflight(w, r, "GET") {
		return
	}

	blocks := api.ledger.GetBlocks()
	key := chainCacheKey(len(blocks))
	if api.responses != nil {
		if data, ok := api.responses.Get(key); ok {
			writeRawJSON(w, http.StatusOK, data)
			return
		}
	}

	data, err := json.Marshal(blocks)
	if err != nil {
		logger.Errorf("Failed to serialize chain: %v", err)
		sendError(w, http.StatusInternalServerError, "failed to serialize chain")
		return
	}
	if api.responses != nil {
		api.responses.Set(key, data)
	}
	writeRawJSON(w, http.StatusOK, data)
}

func (api *ChainAPI) BlockHandler(w http.ResponseWriter, r *http.Request) {
	if preflight(w, r, "GET") {
		return
	}
	index, err := strconv.ParseUint(mux.Vars(r)["index"], 10, 64)
	if err != nil {
		sendError(w, http.StatusBadRequest, "invalid block index")
		return
	}
	block, err := api.ledger.BlockByIndex(index)
	if errors.Is(err, core.ErrBlockNotFound) {
		sendError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, block)
}

func (api *ChainAPI) NewTransactionHandler(w http.ResponseWriter, r *http.Request) {
	if preflight(w, r, "PUT, POST") {
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		sendError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	tx, err := api.validator.DecodeTransactionPayload(body)
	if err != nil {
		sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	next, err := api.ledger.QueueTransaction(tx)
	if err != nil {
		if errors.Is(err, core.ErrPoolFull) {
			sendError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		sendError(w, http.StatusInternalServerError, err.Error())
		return
	}
	logger.Debugf("Added transaction %s", tx)
	writeJSON(w, http.StatusCreated, TransactionAck{Message: ackMessage, Index: next})
}

func (api *ChainAPI) VerifyHandler(w http.ResponseWriter, r *http.Request) {
	if preflight(w, r, "GET") {
		return
	}
	resp := map[string]interface{}{
		"valid":  true,
		"length": api.ledger.Len(),
	}
	if err := api.ledger.CheckIntegrity(); err != nil {
		resp["valid"] = false
		resp["error"] = err.Error()
		var ie *core.IntegrityError
		if errors.As(err, &ie) {
			resp["block"] = ie.Index
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (api *ChainAPI) PendingHandler(w http.ResponseWriter, r *http.Request) {
	if preflight(w, r, "GET") {
		return
	}
	writeJSON(w, http.StatusOK, api.ledger.GetTransactions())
}

func (api *ChainAPI) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	if preflight(w, r, "GET") {
		return
	}
	writeJSON(w, http.StatusOK, metrics.GetMetrics().ToMap())
}
