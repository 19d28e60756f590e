package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"hashledger/interfaces"
	"hashledger/logger"
)

// MinerConfig mengatur reward dan ritme miner latar belakang.
type MinerConfig struct {
	Address      string // penerima reward
	RewardSender string
	RewardAmount float64
	Interval     time.Duration // jeda antar blok
	Timeout      time.Duration // batas waktu satu pencarian proof, 0 berarti tanpa batas
}

type Miner struct {
	ledger    *Ledger
	consensus interfaces.Engine
	config    MinerConfig
	running   bool
	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewMiner(ledger *Ledger, consensusEngine interfaces.Engine, cfg MinerConfig) *Miner {
	return &Miner{
		ledger:    ledger,
		consensus: consensusEngine,
		config:    cfg,
	}
}

// RewardTransaction membangun transaksi reward untuk satu blok.
func (m *Miner) RewardTransaction() Transaction {
	return NewTransaction(m.config.RewardSender, m.config.Address, m.config.RewardAmount)
}

func (m *Miner) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		logger.Info("Miner already running.")
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.running = true
	m.cancel = cancel
	m.done = make(chan struct{})
	done := m.done
	m.mu.Unlock()

	logger.Infof("Starting miner, reward recipient: %s", m.config.Address)

	go func() {
		defer close(done)
		for {
			if _, err := m.MineOnce(ctx); err != nil && ctx.Err() == nil {
				logger.Errorf("Miner: failed to mine block: %v", err)
			}
			select {
			case <-ctx.Done():
				logger.Info("Miner stopping work loop.")
				return
			case <-time.After(m.config.Interval):
			}
		}
	}()
}

// Stop membatalkan pencarian yang sedang berjalan dan menunggu loop selesai.
func (m *Miner) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		logger.Info("Miner is not running.")
		return
	}
	logger.Info("Stopping miner...")
	m.cancel()
	done := m.done
	m.running = false
	m.mu.Unlock()

	<-done
	logger.Info("Miner stopped.")
}

// MineOnce menambang satu blok berisi pending pool ditambah reward.
func (m *Miner) MineOnce(ctx context.Context) (MineResult, error) {
	if m.consensus == nil {
		return MineResult{}, errors.New("consensus engine not set")
	}
	if m.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.config.Timeout)
		defer cancel()
	}

	startTime := time.Now()
	result, err := m.ledger.Mine(ctx, m.consensus, m.RewardTransaction())
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return MineResult{}, ErrMiningTimeout
		}
		return MineResult{}, err
	}
	logger.Infof("Miner: block %d mined in %v with proof %d (%d transactions incl. reward)",
		result.Index, time.Since(startTime), result.Proof, len(result.Block.transactions))
	return result, nil
}

func (m *Miner) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}
