// Command dasl-codec is a thin manual smoke-testing harness over the
// four public codec operations (cid, multibase, dagcbor, car). No pack
// example carries a CLI framework in this domain (no urfave/cli, no
// cobra import appears anywhere in the retrieved repos), so this follows
// the standard library's own flag.FlagSet subcommand idiom rather than
// inventing a dependency the corpus never shows.
package main

import (
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/hyphacoop/go-dasl-codec/car"
	"github.com/hyphacoop/go-dasl-codec/cid"
	"github.com/hyphacoop/go-dasl-codec/dagcbor"
	"github.com/hyphacoop/go-dasl-codec/multibase"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "cid":
		err = runCid(os.Args[2:])
	case "multibase":
		err = runMultibase(os.Args[2:])
	case "dagcbor":
		err = runDagCbor(os.Args[2:])
	case "car":
		err = runCar(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "dasl-codec:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  dasl-codec cid decode <text-or-hex>
  dasl-codec cid encode <text-or-hex>
  dasl-codec multibase encode <code> <text>
  dasl-codec multibase decode <text>
  dasl-codec dagcbor decode <hex>
  dasl-codec car inspect <path>`)
}

// cidArg accepts either a plain string (multibase text / CIDv0 text) or a
// hex-prefixed binary form ("0x..."), since the public API takes either a
// string or []byte.
func cidArg(s string) any {
	if len(s) > 2 && s[:2] == "0x" {
		if b, err := hex.DecodeString(s[2:]); err == nil {
			return b
		}
	}
	return s
}

func runCid(args []string) error {
	fs := flag.NewFlagSet("cid", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 2 {
		return errors.New("usage: dasl-codec cid <decode|encode> <text-or-hex>")
	}
	switch fs.Arg(0) {
	case "decode":
		c, err := cid.Decode(cidArg(fs.Arg(1)))
		if err != nil {
			return err
		}
		fmt.Printf("version=%d codec=0x%x hash.code=0x%x hash.size=%d hash.digest=%x\n",
			c.Version, c.Codec, c.Hash.Code, c.Hash.Size, c.Hash.Digest)
		return nil
	case "encode":
		text, err := cid.Encode(cidArg(fs.Arg(1)))
		if err != nil {
			return err
		}
		fmt.Println(text)
		return nil
	default:
		return fmt.Errorf("unknown cid subcommand %q", fs.Arg(0))
	}
}

func runMultibase(args []string) error {
	fs := flag.NewFlagSet("multibase", flag.ExitOnError)
	fs.Parse(args)
	switch fs.Arg(0) {
	case "encode":
		if fs.NArg() != 3 {
			return errors.New("usage: dasl-codec multibase encode <code> <text>")
		}
		text, err := multibase.Encode(fs.Arg(1)[0], fs.Arg(2))
		if err != nil {
			return err
		}
		fmt.Println(text)
		return nil
	case "decode":
		if fs.NArg() != 2 {
			return errors.New("usage: dasl-codec multibase decode <text>")
		}
		code, data, err := multibase.Decode(fs.Arg(1))
		if err != nil {
			return err
		}
		fmt.Printf("code=%q data=%x\n", code, data)
		return nil
	default:
		return fmt.Errorf("unknown multibase subcommand %q", fs.Arg(0))
	}
}

func runDagCbor(args []string) error {
	fs := flag.NewFlagSet("dagcbor", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 2 || fs.Arg(0) != "decode" {
		return errors.New("usage: dasl-codec dagcbor decode <hex>")
	}
	buf, err := hex.DecodeString(fs.Arg(1))
	if err != nil {
		return fmt.Errorf("decoding hex argument: %w", err)
	}
	v, err := dagcbor.Decode(buf)
	if err != nil {
		return err
	}
	fmt.Printf("%+v\n", v)
	return nil
}

func runCar(args []string) error {
	fs := flag.NewFlagSet("car", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 2 || fs.Arg(0) != "inspect" {
		return errors.New("usage: dasl-codec car inspect <path>")
	}
	buf, err := os.ReadFile(fs.Arg(1))
	if err != nil {
		return err
	}
	header, blocks, err := car.Decode(buf)
	if err != nil {
		return err
	}
	fmt.Printf("version=%d roots=%d blocks=%d\n", header.Version, len(header.Roots), len(blocks))
	for _, r := range header.Roots {
		text, err := cid.Encode(r.Bytes())
		if err != nil {
			return err
		}
		fmt.Println("  root:", text)
	}
	return nil
}
