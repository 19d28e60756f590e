package rpc

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"hashledger/consensus"
	"hashledger/core"
	"hashledger/interfaces"
	"hashledger/logger"
	"hashledger/metrics"
)

type MiningAPI struct {
	ledger *core.Ledger
	miner  *core.Miner
	stats  *MiningStats
	mutex  sync.RWMutex
}

type MiningStats struct {
	IsActive    bool   `json:"isActive"`
	BlocksFound int    `json:"blocksFound"` // blok dari endpoint /mine
	Difficulty  string `json:"difficulty"`
	StartTime   int64  `json:"startTime"`
}

func NewMiningAPI(ledger *core.Ledger, engine interfaces.Engine, miner *core.Miner) *MiningAPI {
	stats := &MiningStats{}
	if pow, ok := engine.(*consensus.ProofOfWork); ok {
		stats.Difficulty = pow.Difficulty().String()
	}
	return &MiningAPI{
		ledger: ledger,
		miner:  miner,
		stats:  stats,
	}
}

// MineHandler menambang satu blok: pending pool ditambah reward, lalu mengembalikan
// {proof, index, transaction} sebagai objek JSON datar berisi string.
func (api *MiningAPI) MineHandler(w http.ResponseWriter, r *http.Request) {
	if preflight(w, r, "GET") {
		return
	}
	if api.miner == nil {
		sendError(w, http.StatusServiceUnavailable, "miner not configured")
		return
	}

	result, err := api.miner.MineOnce(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, core.ErrMiningTimeout):
			sendError(w, http.StatusServiceUnavailable, err.Error())
		case errors.Is(err, context.Canceled):
			logger.Debugf("Mine request cancelled by client")
		default:
			logger.Errorf("Mine request failed: %v", err)
			sendError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	api.mutex.Lock()
	api.stats.BlocksFound++
	api.mutex.Unlock()

	resp, err := result.ToMap()
	if err != nil {
		sendError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (api *MiningAPI) StartHandler(w http.ResponseWriter, r *http.Request) {
	if preflight(w, r, "POST") {
		return
	}
	if api.miner == nil {
		sendError(w, http.StatusServiceUnavailable, "miner not configured")
		return
	}

	api.mutex.Lock()
	defer api.mutex.Unlock()
	if api.miner.IsRunning() {
		sendError(w, http.StatusConflict, "Mining already active")
		return
	}
	api.miner.Start()
	api.stats.StartTime = time.Now().Unix()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Mining started successfully",
	})
}

func (api *MiningAPI) StopHandler(w http.ResponseWriter, r *http.Request) {
	if preflight(w, r, "POST") {
		return
	}
	if api.miner == nil || !api.miner.IsRunning() {
		sendError(w, http.StatusConflict, "Mining not active")
		return
	}
	api.miner.Stop()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Mining stopped successfully",
	})
}

func (api *MiningAPI) StatsHandler(w http.ResponseWriter, r *http.Request) {
	if preflight(w, r, "GET") {
		return
	}
	api.mutex.RLock()
	stats := *api.stats
	api.mutex.RUnlock()
	stats.IsActive = api.miner != nil && api.miner.IsRunning()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"stats":   stats,
		"metrics": metrics.GetMetrics().ToMap(),
		"height":  api.ledger.Len() - 1,
	})
}
