// zcash-pczt CLI - builds, signs, and extracts Zcash v5 transactions
// through the PCZT pipeline.
//
// Example usage:
//
//	# Parse a ZIP 321 payment request
//	zcash-pczt parse-uri "zcash:t1abc...?amount=1.5"
//
//	# Build a proposal from serialized inputs and a payment URI
//	zcash-pczt propose --inputs coins.bin --uri "zcash:..." --out proposal.pczt
//
//	# Sign one transparent input
//	zcash-pczt sign --pczt proposal.pczt --key <WIF> --index 0 --out signed.pczt
//
//	# Extract the final transaction
//	zcash-pczt extract --pczt signed.pczt --out tx.raw
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"github.com/zclabs/zcash-pczt/pkg/api"
	"github.com/zclabs/zcash-pczt/pkg/crypto"
	"github.com/zclabs/zcash-pczt/pkg/fees"
	"github.com/zclabs/zcash-pczt/pkg/prover"
	"github.com/zclabs/zcash-pczt/pkg/zip321"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	api.SetEngine(prover.DevEngine{})

	switch os.Args[1] {
	case "parse-uri":
		cmdParseURI(os.Args[2:])
	case "propose":
		cmdPropose(os.Args[2:])
	case "fee":
		cmdFee(os.Args[2:])
	case "sign":
		cmdSign(os.Args[2:])
	case "extract":
		cmdExtract(os.Args[2:])
	case "version":
		cmdVersion()
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`zcash-pczt - PCZT transaction builder

Usage:
  zcash-pczt <command> [options]

Commands:
  parse-uri <uri>              Parse a ZIP 321 payment request URI
  propose                      Build a proposal PCZT from inputs and a URI
  fee                          Compute the ZIP 317 fee for a shape
  sign                         Sign one transparent input of a PCZT
  extract                      Finalize and extract the raw transaction
  version                      Show version information
  help                         Show this help message

Examples:
  zcash-pczt parse-uri "zcash:t1abc...?amount=1.5"

  zcash-pczt propose \
    --inputs coins.bin \
    --uri "zcash:t1abc...?amount=1.5" \
    --height 2500000 \
    --out proposal.pczt

  zcash-pczt fee --inputs 2 --outputs 2 --shielded 1

  zcash-pczt sign --pczt proposal.pczt --key <WIF> --index 0 --out signed.pczt

  zcash-pczt extract --pczt signed.pczt --out tx.raw`)
}

func cmdVersion() {
	fmt.Println("zcash-pczt v0.2.0")
	fmt.Println("PCZT pipeline for Zcash v5 transactions (ZIP 225, ZIP 244, ZIP 317, ZIP 321)")
}

// fatal prints the failing stage plus the pipeline's last error and exits.
func fatal(stage string, rc api.ResultCode) {
	buf := make([]byte, 1024)
	if n, ok := api.GetLastError(buf); ok == api.Success {
		fmt.Fprintf(os.Stderr, "%s failed (code %d): %s\n", stage, rc, buf[:n])
	} else {
		fmt.Fprintf(os.Stderr, "%s failed (code %d)\n", stage, rc)
	}
	os.Exit(1)
}

func cmdParseURI(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: zcash-pczt parse-uri <uri>")
		os.Exit(1)
	}

	req, err := zip321.Parse(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse URI: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Payments: %d\n\n", len(req.Payments))
	for i, p := range req.Payments {
		fmt.Printf("Payment %d:\n", i)
		fmt.Printf("  Address: %s\n", p.Address)
		if p.Amount != nil {
			fmt.Printf("  Amount:  %s ZEC (%d zatoshis)\n", zip321.FormatAmount(*p.Amount), *p.Amount)
		} else {
			fmt.Println("  Amount:  (payer chooses)")
		}
		if len(p.Memo) > 0 {
			fmt.Printf("  Memo:    %q\n", p.Memo)
		}
		if p.Label != "" {
			fmt.Printf("  Label:   %s\n", p.Label)
		}
		if p.Message != "" {
			fmt.Printf("  Message: %s\n", p.Message)
		}
		fmt.Println()
	}
	fmt.Printf("Re-encoded URI:\n%s\n", req.Encode())
}

func cmdPropose(args []string) {
	fs := flag.NewFlagSet("propose", flag.ExitOnError)
	inputsPath := fs.String("inputs", "", "file with serialized transparent inputs")
	uri := fs.String("uri", "", "ZIP 321 payment request URI")
	change := fs.String("change", "", "change address (defaults to the first input's key)")
	testnet := fs.Bool("testnet", false, "use testnet consensus parameters")
	height := fs.Uint("height", 0, "target block height for expiry")
	outPath := fs.String("out", "proposal.pczt", "output PCZT file")
	fs.Parse(args)

	if *inputsPath == "" || *uri == "" {
		fmt.Fprintln(os.Stderr, "Usage: zcash-pczt propose --inputs <file> --uri <uri> [--change addr] [--testnet] [--height N] [--out file]")
		os.Exit(1)
	}

	inputData, err := os.ReadFile(*inputsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read inputs: %v\n", err)
		os.Exit(1)
	}

	h, rc := api.ProposeTransaction(inputData, *uri, *change, !*testnet, uint32(*height))
	if rc != api.Success {
		fatal("propose", rc)
	}
	h, rc = api.ProveTransaction(h)
	if rc != api.Success {
		fatal("prove", rc)
	}

	data, rc := api.SerializePCZT(h)
	if rc != api.Success {
		fatal("serialize", rc)
	}
	if err := os.WriteFile(*outPath, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", *outPath, err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s (%d bytes)\n", *outPath, len(data))
}

func cmdFee(args []string) {
	fs := flag.NewFlagSet("fee", flag.ExitOnError)
	nIn := fs.Uint64("inputs", 0, "transparent input count")
	nOut := fs.Uint64("outputs", 0, "transparent output count")
	nShielded := fs.Uint64("shielded", 0, "shielded output count")
	fs.Parse(args)

	fee := fees.Calculate(*nIn, *nOut, *nShielded)
	fmt.Printf("ZIP 317 fee: %d zatoshis (%s ZEC)\n", fee, zip321.FormatAmount(fee))
}

func cmdSign(args []string) {
	fs := flag.NewFlagSet("sign", flag.ExitOnError)
	pcztPath := fs.String("pczt", "", "PCZT file to sign")
	wif := fs.String("key", "", "WIF-encoded private key")
	index := fs.Uint("index", 0, "transparent input index")
	outPath := fs.String("out", "signed.pczt", "output PCZT file")
	fs.Parse(args)

	if *pcztPath == "" || *wif == "" {
		fmt.Fprintln(os.Stderr, "Usage: zcash-pczt sign --pczt <file> --key <WIF> [--index N] [--out file]")
		os.Exit(1)
	}

	key, err := crypto.ParsePrivateKeyWIF(*wif)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse key: %v\n", err)
		os.Exit(1)
	}
	data, err := os.ReadFile(*pcztPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read PCZT: %v\n", err)
		os.Exit(1)
	}

	h, rc := api.ParsePCZT(data)
	if rc != api.Success {
		fatal("parse", rc)
	}
	digest, rc := api.GetSighash(h, uint32(*index))
	if rc != api.Success {
		fatal("sighash", rc)
	}
	fmt.Printf("Sighash for input %d: %s\n", *index, hex.EncodeToString(digest[:]))

	h, rc = api.AppendSignature(h, uint32(*index), key.SignCompact(digest))
	if rc != api.Success {
		fatal("sign", rc)
	}

	signed, rc := api.SerializePCZT(h)
	if rc != api.Success {
		fatal("serialize", rc)
	}
	if err := os.WriteFile(*outPath, signed, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", *outPath, err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s (%d bytes)\n", *outPath, len(signed))
}

func cmdExtract(args []string) {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	pcztPath := fs.String("pczt", "", "signed PCZT file")
	outPath := fs.String("out", "", "write raw transaction bytes here (default: hex to stdout)")
	fs.Parse(args)

	if *pcztPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: zcash-pczt extract --pczt <file> [--out file]")
		os.Exit(1)
	}

	data, err := os.ReadFile(*pcztPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read PCZT: %v\n", err)
		os.Exit(1)
	}

	h, rc := api.ParsePCZT(data)
	if rc != api.Success {
		fatal("parse", rc)
	}
	tx, rc := api.FinalizeAndExtract(h)
	if rc != api.Success {
		fatal("extract", rc)
	}

	if *outPath != "" {
		if err := os.WriteFile(*outPath, tx, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", *outPath, err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %s (%d bytes)\n", *outPath, len(tx))
		return
	}
	fmt.Println(hex.EncodeToString(tx))
}
