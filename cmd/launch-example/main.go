// This program launches a single token from the command line, paying with a
// local solana-keygen wallet. The launch is recorded in memory only. With
// --claim it instead collects the withheld transfer fees of a mint.
//
//	go run ./cmd/launch-example --key ~/.config/solana/id.json --spec token.json --solana-use-devnet
//	go run ./cmd/launch-example --key ~/.config/solana/id.json --claim <mint> --solana-use-devnet
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	solanago "github.com/gagliardetto/solana-go"
	goflags "github.com/jessevdk/go-flags"
	"gitlab.com/atechtools/token-launcher/app"
	"gitlab.com/atechtools/token-launcher/common"
	"gitlab.com/atechtools/token-launcher/solana"
)

type options struct {
	app.Config

	KeyPath  string `long:"key" env:"LAUNCHER_KEY_PATH" required:"true" description:"solana-keygen file of the paying wallet"`
	SpecPath string `long:"spec" description:"JSON file with the token spec"`
	Claim    string `long:"claim" description:"mint to claim withheld fees of instead of launching"`
}

func readSpec(path string) (common.TokenSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return common.TokenSpec{}, err
	}
	var spec common.TokenSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return common.TokenSpec{}, fmt.Errorf("cannot parse %s: %w", path, err)
	}
	return spec, nil
}

func main() {
	var opts options
	if _, err := goflags.Parse(&opts); err != nil {
		if err, ok := err.(*goflags.Error); ok && err.Type == goflags.ErrHelp {
			os.Exit(2)
		}
		log.Fatalf("Error during flags parsing: %v.", err)
	}
	opts.ApiAddr = ""
	opts.DBCfgPath = ""
	if (opts.SpecPath == "") == (opts.Claim == "") {
		log.Fatalf("Exactly one of --spec and --claim is required.")
	}

	wallet, err := solana.KeypairWalletFromFile(opts.KeyPath)
	if err != nil {
		log.Fatalf("Cannot load wallet: %v", err)
	}

	ctx := context.Background()
	a := app.New()
	defer a.Close()
	if err := a.Start(ctx, opts.Config); err != nil {
		log.Fatalf("Cannot start: %v", err)
	}

	capability, err := solana.ResolveCapability(wallet, a.Minter())
	if err != nil {
		log.Fatalf("Cannot use wallet: %v", err)
	}
	if opts.Claim != "" {
		claim(ctx, a, opts.Claim, capability)
		return
	}

	spec, err := readSpec(opts.SpecPath)
	if err != nil {
		log.Fatalf("Cannot read spec: %v", err)
	}
	res, err := a.Launcher().Launch(ctx, spec, capability)
	if err != nil {
		log.Fatalf("Launch failed: %v", err)
	}

	fmt.Printf("Mint: %s\n", res.Mint)
	fmt.Printf("Token account: %s\n", res.AssociatedAccount)
	fmt.Printf("Transaction: %s\n", res.Signature)
	if res.NoMetadata {
		fmt.Println("Created without off-chain metadata")
	} else {
		fmt.Printf("Metadata: %s\n", res.MetadataURI)
	}
}

func claim(ctx context.Context, a *app.App, mintStr string, capability solana.Capability) {
	mint, err := solanago.PublicKeyFromBase58(mintStr)
	if err != nil {
		log.Fatalf("Bad mint %q: %v", mintStr, err)
	}
	res, err := a.Launcher().Claim(ctx, mint, capability)
	if err != nil {
		log.Fatalf("Claim failed: %v", err)
	}
	fmt.Printf("Claimed: %d base units from %d accounts\n", res.Amount, res.Accounts)
	fmt.Printf("Destination: %s\n", res.Destination)
	fmt.Printf("Transaction: %s\n", res.Signature)
	if res.Remaining > 0 {
		fmt.Printf("%d accounts left, run again to claim them\n", res.Remaining)
	}
}
