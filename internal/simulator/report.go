package simulator

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/curve-launchpad/internal/launchpad/exchange"
)

// Report is the outcome of one scenario run.
type Report struct {
	Authority solana.PublicKey
	Rounds    []RoundReport
	Trades    int
	Claimed   uint64
	Escrow    exchange.EscrowStatus
	Curves    []CurveReport
	Wallets   []WalletReport
	Duration  time.Duration
}

type RoundReport struct {
	Index     int
	Succeeded int
	Failed    int
	Trades    int
	Fees      uint64
	Claimed   uint64
	// Errors counts failed requests per error code.
	Errors map[string]int
}

type CurveReport struct {
	Symbol            string
	Mint              solana.PublicKey
	ProgressBps       uint64
	Complete          bool
	RealSolReserves   uint64
	RealTokenReserves uint64
}

type WalletReport struct {
	Name      string
	Key       solana.PublicKey
	Lamports  uint64
	Claimable uint64
	Tokens    map[string]uint64
}

// Print writes a human readable summary of r to w.
func (r *Report) Print(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, "ROUND\tOK\tFAILED\tFEES\tCLAIMED\tERRORS")
	for _, rr := range r.Rounds {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%s\n", rr.Index, rr.Succeeded, rr.Failed, rr.Fees, rr.Claimed, formatCounts(rr.Errors))
	}
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "CURVE\tPROGRESS\tCOMPLETE\tREAL SOL\tREAL TOKENS")
	for _, c := range r.Curves {
		fmt.Fprintf(tw, "%s\t%.2f%%\t%t\t%d\t%d\n", c.Symbol, float64(c.ProgressBps)/100, c.Complete, c.RealSolReserves, c.RealTokenReserves)
	}
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "WALLET\tLAMPORTS\tCLAIMABLE\tTOKENS")
	for _, wr := range r.Wallets {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", wr.Name, wr.Lamports, wr.Claimable, formatCounts(wr.Tokens))
	}
	fmt.Fprintln(tw)

	fmt.Fprintf(tw, "escrow\treceived=%d sent=%d balance=%d solvent=%t\n",
		r.Escrow.Received, r.Escrow.Sent, r.Escrow.Balance, r.Escrow.Solvent)
	fmt.Fprintf(tw, "totals\ttrades=%d claimed=%d duration=%s\n", r.Trades, r.Claimed, r.Duration.Round(time.Millisecond))
	return tw.Flush()
}

func formatCounts[V int | uint64](m map[string]V) string {
	if len(m) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, m[k])
	}
	return strings.Join(parts, ",")
}
