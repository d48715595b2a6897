// Command cubed is a thin CLI over cubestore/cube/identity, exercising the
// core library end to end the way the teacher's cmd/rubin-node and
// cmd/rubin-consensus-cli do for their own consensus engine: a flag-parsed
// entrypoint with no logic of its own beyond wiring arguments into the
// library and printing results.
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/EliasOenal/verity-sub007/cube"
	"github.com/EliasOenal/verity-sub007/cubestore"
	"github.com/EliasOenal/verity-sub007/fields"
	"github.com/EliasOenal/verity-sub007/identity"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "usage: cubed <identity-create|cube-add|range-dump> [flags]")
		return 2
	}

	switch args[0] {
	case "identity-create":
		return runIdentityCreate(args[1:], stdout, stderr)
	case "cube-add":
		return runCubeAdd(args[1:], stdout, stderr)
	case "range-dump":
		return runRangeDump(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "unknown subcommand %q\n", args[0])
		return 2
	}
}

func openStore(dbPath string, difficulty uint) (*cubestore.Store, error) {
	cfg := cubestore.DefaultConfig()
	cfg.RequiredDifficulty = uint8(difficulty)
	if dbPath != "" {
		cfg.InMemory = false
		cfg.DBName = dbPath
	}
	return cubestore.Open(cfg)
}

func runIdentityCreate(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("identity-create", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dbPath := fs.String("db", "", "bbolt database path (empty = in-memory)")
	username := fs.String("username", "", "identity username")
	passphrase := fs.String("passphrase", "", "identity passphrase")
	difficulty := fs.Uint("difficulty", 0, "required hashcash difficulty")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *username == "" {
		fmt.Fprintln(stderr, "identity-create: -username is required")
		return 2
	}

	s, err := openStore(*dbPath, *difficulty)
	if err != nil {
		log.Print(err)
		return 1
	}
	defer func() { _ = s.Shutdown() }()

	cfg := identity.DefaultConfig()
	cfg.RequiredDifficulty = uint8(*difficulty)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	id, err := identity.Create(ctx, s, *username, *passphrase, cfg, identity.CreateOptions{})
	if err != nil {
		log.Print(err)
		return 1
	}
	defer id.Shutdown()

	fmt.Fprintf(stdout, "key=%s username=%s\n", id.Key(), id.Username())
	return 0
}

func runCubeAdd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("cube-add", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dbPath := fs.String("db", "", "bbolt database path (empty = in-memory)")
	payload := fs.String("payload", "", "PAYLOAD field content")
	difficulty := fs.Uint("difficulty", 0, "required hashcash difficulty")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	s, err := openStore(*dbPath, *difficulty)
	if err != nil {
		log.Print(err)
		return 1
	}
	defer func() { _ = s.Shutdown() }()

	var flds []fields.Field
	if *payload != "" {
		f, err := fields.NewField(fields.PAYLOAD, []byte(*payload))
		if err != nil {
			log.Print(err)
			return 1
		}
		flds = append(flds, f)
	}

	c, err := cube.Create(cube.CreateParams{
		Type:               cube.FROZEN,
		Fields:             flds,
		RequiredDifficulty: uint8(*difficulty),
	})
	if err != nil {
		log.Print(err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if err := c.Compile(ctx); err != nil {
		log.Print(err)
		return 1
	}

	info, err := s.AddCube(ctx, c.Binary())
	if err != nil {
		log.Print(err)
		return 1
	}
	if info == nil {
		fmt.Fprintln(stderr, "cube-add: admission rejected (lost contest or below difficulty floor)")
		return 1
	}
	fmt.Fprintf(stdout, "key=%s date=%d difficulty=%d\n", info.Key, info.Date, info.Difficulty)
	return 0
}

func runRangeDump(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("range-dump", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dbPath := fs.String("db", "", "bbolt database path (empty = in-memory)")
	limit := fs.Int("limit", 20, "maximum entries to print")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	s, err := openStore(*dbPath, 0)
	if err != nil {
		log.Print(err)
		return 1
	}
	defer func() { _ = s.Shutdown() }()

	infos, err := s.RangeByDate(cube.Key{}, cubestore.RangeOptions{Limit: *limit})
	if err != nil {
		log.Print(err)
		return 1
	}
	for _, info := range infos {
		fmt.Fprintf(stdout, "%s type=%s date=%d difficulty=%d\n",
			hex.EncodeToString(info.Key[:]), info.CubeType, info.Date, info.Difficulty)
	}
	return 0
}
