// =============================================
// File: internal/simulator/scenario.go
// =============================================
package simulator

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// LamportsPerSOL converts wallet funding given in SOL.
const LamportsPerSOL = 1_000_000_000

// OperationType defines the supported step operations
type OperationType string

const (
	OperationBuy   OperationType = "buy"
	OperationSell  OperationType = "sell"
	OperationClaim OperationType = "claim"
)

// Scenario describes wallets, curves and rounds of requests to replay.
// Steps of one round run as a single batch; rounds run in order.
type Scenario struct {
	Wallets []WalletSpec `yaml:"wallets"`
	Curves  []CurveSpec  `yaml:"curves"`
	Rounds  []Round      `yaml:"rounds"`
}

type WalletSpec struct {
	Name string  `yaml:"name"`
	SOL  float64 `yaml:"sol"`
	// Key is a base58 public key. A new one is generated when empty.
	Key string `yaml:"key"`
	// Parent is the referrer wallet name; empty joins at the root.
	Parent string `yaml:"parent"`
}

type CurveSpec struct {
	Symbol  string `yaml:"symbol"`
	Name    string `yaml:"name"`
	URI     string `yaml:"uri"`
	Creator string `yaml:"creator"`
}

type Round struct {
	Steps []Step `yaml:"steps"`
}

type Step struct {
	Operation OperationType `yaml:"op"`
	Wallet    string        `yaml:"wallet"`
	Curve     string        `yaml:"curve"`
	Tokens    uint64        `yaml:"tokens"`
	// MaxSolCost bounds a buy and MinSolOutput a sell. A zero MaxSolCost means no limit.
	MaxSolCost   uint64 `yaml:"max_sol_cost"`
	MinSolOutput uint64 `yaml:"min_sol_output"`
}

// LoadScenario reads a scenario from a YAML file.
func LoadScenario(path string, logger *zap.Logger) (*Scenario, error) {
	if filepath.IsAbs(path) {
		logger.Debug("Using absolute path for scenario file", zap.String("path", path))
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates a YAML scenario.
func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate checks that every name a step or curve refers to is declared.
func (sc *Scenario) Validate() error {
	if len(sc.Wallets) == 0 {
		return fmt.Errorf("no wallets in scenario")
	}
	if len(sc.Curves) == 0 {
		return fmt.Errorf("no curves in scenario")
	}

	wallets := make(map[string]bool, len(sc.Wallets))
	for _, w := range sc.Wallets {
		if w.Name == "" {
			return fmt.Errorf("wallet without a name")
		}
		if wallets[w.Name] {
			return fmt.Errorf("duplicate wallet %q", w.Name)
		}
		if _, err := solToLamports(w.SOL); err != nil {
			return fmt.Errorf("wallet %q: %w", w.Name, err)
		}
		wallets[w.Name] = true
		if _, err := w.PublicKey(); err != nil {
			return fmt.Errorf("wallet %q: %w", w.Name, err)
		}
	}
	// a parent is declared before its child
	seen := make(map[string]bool, len(sc.Wallets))
	for _, w := range sc.Wallets {
		if w.Parent != "" && !seen[w.Parent] {
			return fmt.Errorf("wallet %q: parent %q must be declared before it", w.Name, w.Parent)
		}
		seen[w.Name] = true
	}

	curves := make(map[string]bool, len(sc.Curves))
	for _, c := range sc.Curves {
		if c.Symbol == "" {
			return fmt.Errorf("curve without a symbol")
		}
		if curves[c.Symbol] {
			return fmt.Errorf("duplicate curve %q", c.Symbol)
		}
		if !wallets[c.Creator] {
			return fmt.Errorf("curve %q: unknown creator %q", c.Symbol, c.Creator)
		}
		curves[c.Symbol] = true
	}

	for i, r := range sc.Rounds {
		for j, s := range r.Steps {
			if !wallets[s.Wallet] {
				return fmt.Errorf("round %d step %d: unknown wallet %q", i, j, s.Wallet)
			}
			switch s.Operation {
			case OperationBuy, OperationSell:
				if !curves[s.Curve] {
					return fmt.Errorf("round %d step %d: unknown curve %q", i, j, s.Curve)
				}
			case OperationClaim:
			default:
				return fmt.Errorf("round %d step %d: unsupported operation %q", i, j, s.Operation)
			}
		}
	}
	return nil
}

// PublicKey returns the configured key of w, or a fresh one when none is set.
func (w WalletSpec) PublicKey() (solana.PublicKey, error) {
	if w.Key == "" {
		return solana.NewWallet().PublicKey(), nil
	}
	key, err := solana.PublicKeyFromBase58(w.Key)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid key: %w", err)
	}
	return key, nil
}
