// Command sale-monitor runs a token sale engine against in-memory
// collaborators and serves its read-only monitoring API over HTTP. It exists
// to exercise the engine end to end outside a settlement backend; production
// deployments supply their own TokenVendor and FundMover.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cloudx-io/opensale/monitor"
	"github.com/cloudx-io/opensale/sale"
	"github.com/cloudx-io/opensale/saleapi"
	"github.com/cloudx-io/opensale/validation"
)

func main() {
	var (
		listenAddr = flag.String("listen", ":8080", "HTTP listen address for the monitor API")
		adminHex   = flag.String("admin", "", "Admin address, 0x-prefixed hex (required)")
		treasHex   = flag.String("treasury", "", "Treasury address, 0x-prefixed hex (required)")
		beginAt    = flag.String("begin", "", "Sale begin time, RFC 3339 (default: now)")
		tokenCap   = flag.Uint64("cap", 20_000_000, "Token supply for sale, in whole tokens")
		certified  = flag.String("certify", "", "Comma-separated addresses to certify at startup")
		feedSize   = flag.Int("feed", 256, "Observation feed capacity")
	)
	flag.Parse()

	if err := run(*listenAddr, *adminHex, *treasHex, *beginAt, *tokenCap, *certified, *feedSize); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(listenAddr, adminHex, treasHex, beginAt string, tokenCap uint64, certified string, feedSize int) error {
	admin, err := parseAddress("admin", adminHex)
	if err != nil {
		return err
	}
	treasury, err := parseAddress("treasury", treasHex)
	if err != nil {
		return err
	}

	begin := time.Now()
	if beginAt != "" {
		begin, err = time.Parse(time.RFC3339, beginAt)
		if err != nil {
			return fmt.Errorf("invalid --begin: %w", err)
		}
	}

	certifier := sale.NewAllowlistCertifier()
	for _, raw := range strings.Split(certified, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		who, err := parseAddress("certify", raw)
		if err != nil {
			return err
		}
		certifier.Approve(who)
		log.Printf("INFO: certified %s", who.Hex())
	}

	feed := saleapi.NewRing(feedSize)
	verifier := validation.NewStatementVerifier("")
	log.Printf("INFO: acknowledgment statement hash %s", verifier.Hash().Hex())

	s, err := sale.New(sale.Config{
		Admin:    admin,
		Treasury: treasury,
		Begin:    begin,
		TokenCap: tokenCap,
	}, sale.Dependencies{
		Tokens:    sale.NewMemoryMinter(),
		Certifier: certifier,
		Accounts:  sale.NewBasicAccountRegistry(),
		Funds:     sale.NewMemoryVault(),
		Acks:      verifier,
		Sink:      feed,
	})
	if err != nil {
		return err
	}
	log.Printf("INFO: sale begins %s, cap %d tokens, projected end %s",
		begin.Format(time.RFC3339), tokenCap, s.EndTime().Format(time.RFC3339))

	srv := monitor.New(listenAddr, s, feed)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Printf("INFO: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func parseAddress(name, raw string) (common.Address, error) {
	if raw == "" {
		return common.Address{}, fmt.Errorf("--%s is required", name)
	}
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("--%s: %q is not a hex address", name, raw)
	}
	return common.HexToAddress(raw), nil
}
