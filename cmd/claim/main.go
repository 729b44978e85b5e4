// cmd/claim/main.go
//
// claim requests a token claim from the server, signs it with a local
// keypair after an interactive prompt, broadcasts and waits for confirmation.
//
//	claim -server http://localhost:8080 -keypair ~/.config/solana/id.json
//	claim -server ... -token-amount 3 -sol-sig <sig> -expected-lamports 300000000
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/types"
	"github.com/sirupsen/logrus"

	httpout "tokenclaim/internal/adapters/out/http"
	"tokenclaim/internal/application/claimflow"
	"tokenclaim/internal/domain/address"
	claimdom "tokenclaim/internal/domain/claim"
	"tokenclaim/internal/infra/config"
	"tokenclaim/internal/infra/solana"
	"tokenclaim/internal/platform/logging"
)

const (
	exitOK             = 0
	exitFailed         = 1
	exitUsage          = 2
	exitAlreadyClaimed = 3
)

func main() {
	os.Exit(run())
}

func run() int {
	home, _ := os.UserHomeDir()

	var (
		keypairPath      = flag.String("keypair", filepath.Join(home, ".config", "solana", "id.json"), "claimant keypair file (solana-keygen JSON)")
		serverURL        = flag.String("server", envOr("CLAIM_SERVER_URL", "http://localhost:8080"), "claim server base URL")
		rpcURL           = flag.String("rpc", envOr("RPC_URL", config.DefaultRPCURL), "Solana JSON-RPC endpoint")
		mintFlag         = flag.String("mint", "", "token mint (default: read from the server's /config)")
		cluster          = flag.String("cluster", "", "explorer cluster name (default: read from the server's /config)")
		yes              = flag.Bool("yes", false, "approve the transaction without prompting")
		tokenAmount      = flag.Uint64("token-amount", 0, "paid claim: whole tokens bought")
		solSig           = flag.String("sol-sig", "", "paid claim: signature of the SOL payment")
		expectedLamports = flag.Uint64("expected-lamports", 0, "paid claim: lamports sent to the treasury")
		logLevel         = flag.String("log-level", "warn", "log level")
	)
	flag.Parse()

	logging.Configure(*logLevel, "text", os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var payment *claimdom.PaymentProof
	if strings.TrimSpace(*solSig) != "" || *tokenAmount > 0 || *expectedLamports > 0 {
		if strings.TrimSpace(*solSig) == "" || *tokenAmount == 0 || *expectedLamports == 0 {
			fmt.Fprintln(os.Stderr, "paid claim needs -token-amount, -sol-sig and -expected-lamports")
			return exitUsage
		}
		payment = &claimdom.PaymentProof{
			Signature:        strings.TrimSpace(*solSig),
			TokenAmount:      *tokenAmount,
			ExpectedLamports: *expectedLamports,
		}
	}

	server := httpout.NewClaimAPIClient(*serverURL)

	mintStr, clusterName := strings.TrimSpace(*mintFlag), strings.TrimSpace(*cluster)
	if mintStr == "" || clusterName == "" {
		remote, err := server.FetchConfig(ctx)
		if err != nil {
			if mintStr == "" {
				fmt.Fprintf(os.Stderr, "cannot read server config: %v\n", err)
				return exitFailed
			}
			logrus.WithError(err).Warn("server config unavailable")
		}
		if mintStr == "" {
			mintStr = remote.Mint
		}
		if clusterName == "" {
			clusterName = remote.Cluster
		}
	}
	mint, err := address.ParseAddress(mintStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mint: %v\n", err)
		return exitUsage
	}

	approve := promptApprove(bufio.NewReader(os.Stdin))
	if *yes {
		approve = nil
	}
	wallet, err := solana.LoadKeypairWallet(*keypairPath, approve)
	if err != nil {
		fmt.Fprintf(os.Stderr, "wallet: %v\n", err)
		return exitUsage
	}

	ledger := solana.NewLedger(*rpcURL, string(solana.CommitmentConfirmed), "")

	orch := claimflow.NewOrchestrator(ledger, server, wallet, mint)
	if clusterName != "" {
		orch.Cluster = clusterName
	}
	orch.Status = func(s claimflow.State, msg string) {
		fmt.Printf("[%s] %s\n", s, msg)
	}

	fmt.Printf("wallet %s, mint %s\n", address.MaskShort(wallet.PublicKey().ToBase58()), address.MaskShort(mint.ToBase58()))
	res := orch.Run(ctx, payment)

	switch res.State {
	case claimflow.StateSuccess:
		fmt.Println(res.ExplorerURL)
		return exitOK
	case claimflow.StateAlreadyClaimed:
		return exitAlreadyClaimed
	}
	if res.Retryable {
		fmt.Fprintln(os.Stderr, "the claim can be retried")
	}
	return exitFailed
}

// promptApprove shows what is about to be signed and asks on the terminal.
// A cancelled context counts as a rejection.
func promptApprove(in *bufio.Reader) solana.ApproveFunc {
	return func(ctx context.Context, tx types.Transaction) (bool, error) {
		msg := tx.Message
		fmt.Printf("\nTransaction to sign:\n")
		fmt.Printf("  fee payer:    %s\n", feePayer(msg))
		fmt.Printf("  instructions: %d\n", len(msg.Instructions))
		for i, ins := range msg.Instructions {
			if int(ins.ProgramIDIndex) < len(msg.Accounts) {
				fmt.Printf("    #%d program %s\n", i, msg.Accounts[ins.ProgramIDIndex].ToBase58())
			}
		}
		fmt.Print("Approve? [y/N]: ")

		answer := make(chan string, 1)
		go func() {
			line, _ := in.ReadString('\n')
			answer <- strings.ToLower(strings.TrimSpace(line))
		}()

		select {
		case <-ctx.Done():
			fmt.Println()
			return false, nil
		case a := <-answer:
			return a == "y" || a == "yes", nil
		}
	}
}

func feePayer(msg types.Message) string {
	if len(msg.Accounts) == 0 {
		return "-"
	}
	var zero common.PublicKey
	if msg.Accounts[0] == zero {
		return "-"
	}
	return msg.Accounts[0].ToBase58()
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
